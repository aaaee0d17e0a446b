package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
)

const (
	DefaultSpeechEndpoint = "https://speech.googleapis.com/v1"
	// MaxTranscribeBytes is the practical inline payload ceiling of the
	// recognizer.
	MaxTranscribeBytes = 10_000_000
	speechSampleRate   = 24000
	speechModel        = "latest_long"
)

type SpeechTranscriber struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewSpeechTranscriber(apiKey string, opts Options) *SpeechTranscriber {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.SpeechEndpoint), "/")
	if endpoint == "" {
		endpoint = DefaultSpeechEndpoint
	}
	return &SpeechTranscriber{apiKey: strings.TrimSpace(apiKey), endpoint: endpoint, http: opts.client()}
}

type speechRequest struct {
	Config struct {
		Encoding                   string `json:"encoding"`
		SampleRateHertz            int    `json:"sampleRateHertz"`
		LanguageCode               string `json:"languageCode"`
		EnableWordTimeOffsets      bool   `json:"enableWordTimeOffsets"`
		EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
		Model                      string `json:"model"`
	} `json:"config"`
	Audio struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type speechResponse struct {
	Results []struct {
		Alternatives []struct {
			Words []struct {
				Word      string `json:"word"`
				StartTime string `json:"startTime"`
				EndTime   string `json:"endTime"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"results"`
}

func speechEncoding(mimeType string) string {
	if strings.Contains(strings.ToLower(mimeType), "mp3") {
		return "MP3"
	}
	return "LINEAR16"
}

// parseOffset parses "1.200s"; anything unparsable is 0.
func parseOffset(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "s"), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func (s *SpeechTranscriber) Transcribe(ctx context.Context, data []byte, mimeType, languageCode string) ([]library.WordTimestamp, error) {
	if s.apiKey == "" {
		return nil, &CredentialError{Provider: KindChirp}
	}
	if len(data) == 0 {
		return nil, invalidf("audio is required")
	}
	if len(data) > MaxTranscribeBytes {
		return nil, &SizeLimitError{Size: len(data), Limit: MaxTranscribeBytes}
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = defaultLanguage
	}

	var body speechRequest
	body.Config.Encoding = speechEncoding(mimeType)
	body.Config.SampleRateHertz = speechSampleRate
	body.Config.LanguageCode = languageCode
	body.Config.EnableWordTimeOffsets = true
	body.Config.EnableAutomaticPunctuation = true
	body.Config.Model = speechModel
	body.Audio.Content = audio.ToBase64(data)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/speech:recognize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, providerError(resp, "speech", "Speech-to-Text API error", s.apiKey)
	}

	var decoded speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode speech response: %w", err)
	}
	words := make([]library.WordTimestamp, 0, 64)
	for _, r := range decoded.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		for _, w := range r.Alternatives[0].Words {
			words = append(words, library.WordTimestamp{
				Word:      w.Word,
				StartTime: parseOffset(w.StartTime),
				EndTime:   parseOffset(w.EndTime),
			})
		}
	}
	return words, nil
}
