package library

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Provider names the TTS backend that produced a clip.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderChirp  Provider = "chirp"
)

// ParseProvider accepts the provider names used by clients. "gcloud" and
// "cloud" are accepted aliases for Chirp.
func ParseProvider(v string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "gemini":
		return ProviderGemini, true
	case "chirp", "gcloud", "cloud":
		return ProviderChirp, true
	default:
		return "", false
	}
}

// WordTimestamp is one recognized word and its span in seconds.
type WordTimestamp struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// GenerationSettings is a snapshot of the parameters a clip was made with.
type GenerationSettings struct {
	Model        string  `json:"model,omitempty"`
	Voice        string  `json:"voice"`
	Language     string  `json:"language"`
	Style        string  `json:"style,omitempty"`
	Pace         float64 `json:"pace,omitempty"`
	MultiSpeaker bool    `json:"multiSpeaker,omitempty"`
	SecondVoice  string  `json:"secondVoice,omitempty"`
}

// Clip is one persisted generation result. AudioData is base64.
type Clip struct {
	ID         string             `json:"id"`
	Provider   Provider           `json:"provider"`
	Title      string             `json:"title"`
	CreatedAt  int64              `json:"createdAt"`
	Settings   GenerationSettings `json:"settings"`
	Text       string             `json:"text"`
	AudioData  string             `json:"audioData"`
	MimeType   string             `json:"mimeType"`
	Transcript []WordTimestamp    `json:"transcript,omitempty"`
	GroupID    string             `json:"groupId,omitempty"`
	PartNumber int                `json:"partNumber,omitempty"`
}

// AudioSize estimates the decoded audio size from the base64 length.
func (c Clip) AudioSize() int {
	return len(c.AudioData) * 3 / 4
}

// StoredSize is the clip's serialized size, which is what counts against
// the library storage bound.
func (c Clip) StoredSize() int {
	b, err := json.Marshal(c)
	if err != nil {
		return len(c.AudioData) + len(c.Text)
	}
	return len(b)
}

// AppSettings are user preferences persisted beside the library.
type AppSettings struct {
	TeleprompterFontSize    int     `json:"teleprompterFontSize"`
	TeleprompterScrollSpeed float64 `json:"teleprompterScrollSpeed"`
	WordLimit               int     `json:"wordLimit"`
	LongTextMode            bool    `json:"longTextMode"`
}

// DefaultAppSettings returns the settings used before the user saves any.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		TeleprompterFontSize:    28,
		TeleprompterScrollSpeed: 1,
		WordLimit:               500,
		LongTextMode:            false,
	}
}

// Credentials holds provider API keys. It is never returned to clients.
type Credentials struct {
	Gemini string `json:"gemini"`
	GCloud string `json:"gcloud"`
}

// For returns the key used by provider p.
func (c Credentials) For(p Provider) string {
	switch p {
	case ProviderGemini:
		return c.Gemini
	case ProviderChirp:
		return c.GCloud
	default:
		return ""
	}
}

// Merge fills empty fields of c from fallback.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if strings.TrimSpace(c.Gemini) == "" {
		c.Gemini = fallback.Gemini
	}
	if strings.TrimSpace(c.GCloud) == "" {
		c.GCloud = fallback.GCloud
	}
	return c
}

var ErrNotFound = errors.New("clip not found")

// Store persists clips, settings and credentials.
type Store interface {
	// ListClips returns every clip, newest first.
	ListClips(ctx context.Context) ([]Clip, error)
	GetClip(ctx context.Context, id string) (Clip, error)
	PutClips(ctx context.Context, clips []Clip) error
	DeleteClips(ctx context.Context, ids []string) error

	LoadSettings(ctx context.Context) (AppSettings, error)
	SaveSettings(ctx context.Context, settings AppSettings) error
	LoadCredentials(ctx context.Context) (Credentials, error)
	SaveCredentials(ctx context.Context, creds Credentials) error

	Close() error
}
