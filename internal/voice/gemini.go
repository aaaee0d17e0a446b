package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/ent0n29/voiceforge/internal/audio"
)

const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel    = "gemini-2.5-pro-preview-tts"
	geminiDefaultPCMMime  = "audio/L16;rate=24000"
)

var speakerMarker = regexp.MustCompile(`\[([12])\]`)

// Turn is one span of multi-speaker text.
type Turn struct {
	Speaker string
	Text    string
}

// ParseSpeakerTurns splits text on [1]/[2] markers. Text before the first
// marker belongs to the first speaker; with no markers the whole text is a
// single first-speaker turn.
func ParseSpeakerTurns(text, first, second string) []Turn {
	var turns []Turn
	current := first
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			turns = append(turns, Turn{Speaker: current, Text: s})
		}
	}
	prev := 0
	for _, m := range speakerMarker.FindAllStringSubmatchIndex(text, -1) {
		add(text[prev:m[0]])
		if text[m[2]:m[3]] == "2" {
			current = second
		} else {
			current = first
		}
		prev = m[1]
	}
	add(text[prev:])
	if len(turns) == 0 && strings.TrimSpace(text) != "" {
		turns = append(turns, Turn{Speaker: first, Text: strings.TrimSpace(text)})
	}
	return turns
}

type GeminiSynthesizer struct {
	apiKey   string
	endpoint string
	model    string
	clean    bool
	http     *http.Client
}

func NewGeminiSynthesizer(apiKey string, opts Options) *GeminiSynthesizer {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.GeminiEndpoint), "/")
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	model := strings.TrimSpace(opts.GeminiModel)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiSynthesizer{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: endpoint,
		model:    model,
		clean:    opts.CleanText,
		http:     opts.client(),
	}
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig struct {
		VoiceName string `json:"voiceName"`
	} `json:"prebuiltVoiceConfig"`
}

type geminiSpeakerVoiceConfig struct {
	Speaker     string            `json:"speaker"`
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiMultiSpeakerConfig struct {
	SpeakerVoiceConfigs []geminiSpeakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type geminiSpeechConfig struct {
	VoiceConfig             *geminiVoiceConfig        `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *geminiMultiSpeakerConfig `json:"multiSpeakerVoiceConfig,omitempty"`
	LanguageCode            string                    `json:"languageCode,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string           `json:"responseModalities"`
		SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					Data     string `json:"data"`
					MimeType string `json:"mimeType"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func voiceConfig(name string) geminiVoiceConfig {
	var vc geminiVoiceConfig
	vc.PrebuiltVoiceConfig.VoiceName = name
	return vc
}

func (g *GeminiSynthesizer) buildRequest(req Request) geminiRequest {
	var body geminiRequest
	body.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	body.GenerationConfig.SpeechConfig.LanguageCode = req.Language

	var prompt string
	switch {
	case req.twoSpeakers():
		turns := ParseSpeakerTurns(req.Text, req.Voice, req.SecondVoice)
		lines := make([]string, 0, len(turns))
		for _, t := range turns {
			text := t.Text
			if g.clean {
				text = CleanText(text)
			}
			lines = append(lines, fmt.Sprintf(`<speaker name="%s">%s</speaker>`, t.Speaker, text))
		}
		prompt = strings.Join(lines, "\n")
		body.GenerationConfig.SpeechConfig.MultiSpeakerVoiceConfig = &geminiMultiSpeakerConfig{
			SpeakerVoiceConfigs: []geminiSpeakerVoiceConfig{
				{Speaker: req.Voice, VoiceConfig: voiceConfig(req.Voice)},
				{Speaker: req.SecondVoice, VoiceConfig: voiceConfig(req.SecondVoice)},
			},
		}
	default:
		prompt = req.Text
		if req.MultiSpeaker {
			// Drop the [1]/[2] markers so they are not read aloud.
			turns := ParseSpeakerTurns(req.Text, req.Voice, req.Voice)
			lines := make([]string, len(turns))
			for i, t := range turns {
				lines[i] = t.Text
			}
			prompt = strings.Join(lines, "\n")
		}
		if g.clean {
			prompt = CleanText(prompt)
		}
		vc := voiceConfig(req.Voice)
		body.GenerationConfig.SpeechConfig.VoiceConfig = &vc
	}
	if direction := speakingDirection(req.Style, req.Pace); direction != "" {
		prompt = direction + ":\n" + prompt
	}

	body.Contents = []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}
	return body
}

// speakingDirection turns style and pace into a natural-language lead-in.
func speakingDirection(style string, pace float64) string {
	var parts []string
	if s := strings.TrimSpace(style); s != "" {
		parts = append(parts, "in a "+strings.ToLower(s)+" tone")
	}
	switch {
	case pace <= 0:
	case pace < 40:
		parts = append(parts, "at a slow, unhurried pace")
	case pace > 65:
		parts = append(parts, "at a brisk pace")
	}
	if len(parts) == 0 {
		return ""
	}
	return "Read the following " + strings.Join(parts, " and ")
}

func (g *GeminiSynthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	if g.apiKey == "" {
		return Result{}, &CredentialError{Provider: KindGemini}
	}
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	model := g.model
	if m := strings.TrimSpace(req.Model); m != "" {
		model = m
	}
	payload, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		return Result{}, fmt.Errorf("encode gemini request: %w", err)
	}

	url := g.endpoint + "/" + model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, providerError(resp, "gemini", "Gemini API error", g.apiKey)
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return Result{}, ErrNoAudio
	}
	for _, part := range decoded.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		return normalizeGeminiAudio(part.InlineData.Data, part.InlineData.MimeType)
	}
	return Result{}, ErrNoAudio
}

// normalizeGeminiAudio wraps raw PCM in a WAV container and passes any
// other encoding through.
func normalizeGeminiAudio(data, mimeType string) (Result, error) {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = geminiDefaultPCMMime
	}
	raw, err := audio.FromBase64(data)
	if err != nil {
		return Result{}, fmt.Errorf("gemini audio: %w", err)
	}
	if !isPCMMime(mimeType) {
		return Result{Audio: raw, MimeType: mimeType}, nil
	}
	wav, err := audio.EncodeWAVPCM16LE(raw, pcmRate(mimeType))
	if err != nil {
		return Result{}, err
	}
	return Result{Audio: wav, MimeType: audio.FormatWAV.MimeType()}, nil
}

func isPCMMime(mimeType string) bool {
	m := strings.ToLower(mimeType)
	return strings.Contains(m, "l16") || strings.Contains(m, "pcm")
}

// pcmRate reads "rate=N" from a mime type such as audio/L16;codec=pcm;rate=24000.
func pcmRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return audio.DefaultPCMSampleRate
}
