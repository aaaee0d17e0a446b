package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ent0n29/voiceforge/internal/audio"
)

const (
	DefaultChirpEndpoint = "https://texttospeech.googleapis.com/v1"
	chirpVoiceFamily     = "Chirp3-HD"
	defaultLanguage      = "en-US"
)

type ChirpSynthesizer struct {
	apiKey   string
	endpoint string
	clean    bool
	http     *http.Client
}

func NewChirpSynthesizer(apiKey string, opts Options) *ChirpSynthesizer {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.ChirpEndpoint), "/")
	if endpoint == "" {
		endpoint = DefaultChirpEndpoint
	}
	return &ChirpSynthesizer{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: endpoint,
		clean:    opts.CleanText,
		http:     opts.client(),
	}
}

// ChirpVoiceName qualifies a short voice name as {lang}-Chirp3-HD-{voice}.
// Names that are already qualified are returned unchanged.
func ChirpVoiceName(languageCode, voice string) string {
	if strings.Contains(voice, "-"+chirpVoiceFamily+"-") {
		return voice
	}
	return languageCode + "-" + chirpVoiceFamily + "-" + voice
}

type chirpAudioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate,omitempty"`
	Pitch         float64 `json:"pitch"`
}

type chirpRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig chirpAudioConfig `json:"audioConfig"`
}

// speakingRate maps the pace slider onto the provider's 0.25-2.0 range.
func speakingRate(pace float64) float64 {
	if pace <= 0 {
		return 1
	}
	r := pace / 50
	if r < 0.25 {
		return 0.25
	}
	if r > 2 {
		return 2
	}
	return r
}

func (c *ChirpSynthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	if c.apiKey == "" {
		return Result{}, &CredentialError{Provider: KindChirp}
	}
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = defaultLanguage
	}
	text := req.Text
	if c.clean {
		text = CleanText(text)
	}

	var body chirpRequest
	body.Input.Text = text
	body.Voice.LanguageCode = lang
	body.Voice.Name = ChirpVoiceName(lang, req.Voice)
	body.AudioConfig = chirpAudioConfig{AudioEncoding: "MP3", SpeakingRate: speakingRate(req.Pace)}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode chirp request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/text:synthesize", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("chirp request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, providerError(resp, "chirp", "Google Cloud TTS API error", c.apiKey)
	}

	var decoded struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode chirp response: %w", err)
	}
	if decoded.AudioContent == "" {
		return Result{}, ErrNoAudio
	}
	raw, err := audio.FromBase64(decoded.AudioContent)
	if err != nil {
		return Result{}, fmt.Errorf("chirp audio: %w", err)
	}
	return Result{Audio: raw, MimeType: audio.FormatMP3.MimeType()}, nil
}
