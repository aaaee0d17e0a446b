package voice

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/voiceforge/internal/library"
)

// Request is one synthesis call. Pace is the percentage slider value
// (50 is natural speed, 0 means unset).
type Request struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voice"`
	Language     string  `json:"language"`
	Style        string  `json:"style,omitempty"`
	Pace         float64 `json:"pace,omitempty"`
	MultiSpeaker bool    `json:"multiSpeaker,omitempty"`
	SecondVoice  string  `json:"secondVoice,omitempty"`
	Model        string  `json:"model,omitempty"`
}

// Settings snapshots the request for a persisted clip.
func (r Request) Settings() library.GenerationSettings {
	return library.GenerationSettings{
		Model:        r.Model,
		Voice:        r.Voice,
		Language:     r.Language,
		Style:        r.Style,
		Pace:         r.Pace,
		MultiSpeaker: r.MultiSpeaker,
		SecondVoice:  r.SecondVoice,
	}
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return invalidf("text is required")
	}
	if strings.TrimSpace(r.Voice) == "" {
		return invalidf("voice is required")
	}
	return nil
}

// twoSpeakers reports whether the request really has two distinct voices.
// Multi-speaker requests without one fall back to a single speaker.
func (r Request) twoSpeakers() bool {
	second := strings.TrimSpace(r.SecondVoice)
	return r.MultiSpeaker && second != "" && !strings.EqualFold(second, strings.TrimSpace(r.Voice))
}

// Result is a self-contained audio payload.
type Result struct {
	Audio    []byte
	MimeType string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, languageCode string) ([]library.WordTimestamp, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audio []byte, mimeType, languageCode string) ([]library.WordTimestamp, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte, mimeType, languageCode string) ([]library.WordTimestamp, error) {
	return f(ctx, audio, mimeType, languageCode)
}

// Kind tags the synthesis backend family.
type Kind = library.Provider

const (
	KindGemini = library.ProviderGemini
	KindChirp  = library.ProviderChirp
)

// Options configure provider endpoints. Zero values take production defaults.
type Options struct {
	GeminiEndpoint string
	GeminiModel    string
	ChirpEndpoint  string
	SpeechEndpoint string
	CleanText      bool
	HTTPClient     *http.Client
	Timeout        time.Duration
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// NewSynthesizer returns the adapter for kind. A missing key is reported
// when Synthesize is called, before any network I/O.
func NewSynthesizer(kind Kind, creds library.Credentials, opts Options) (Synthesizer, error) {
	switch kind {
	case KindGemini:
		return NewGeminiSynthesizer(creds.Gemini, opts), nil
	case KindChirp:
		return NewChirpSynthesizer(creds.GCloud, opts), nil
	default:
		return nil, invalidf("unknown provider %q", kind)
	}
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, req Request) (Result, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
