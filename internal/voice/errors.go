package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ent0n29/voiceforge/internal/policy"
	"github.com/ent0n29/voiceforge/internal/reliability"
)

var (
	ErrCredentialRequired = errors.New("credential required")
	ErrNoAudio            = errors.New("no audio returned")
	ErrInvalidRequest     = errors.New("invalid request")
)

// CredentialError names the provider whose key is missing.
type CredentialError struct {
	Provider Kind
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s API key is required", e.Provider)
}

func (e *CredentialError) Unwrap() error { return ErrCredentialRequired }

// ProviderError is a non-success response from a provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

// SizeLimitError rejects a transcription payload over the provider ceiling.
type SizeLimitError struct {
	Size  int
	Limit int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("audio is %d bytes, over the %d byte transcription limit; transcribe an unmerged part instead", e.Size, e.Limit)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err is worth re-dispatching unchanged.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	if errors.Is(err, ErrCredentialRequired) || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	var se *SizeLimitError
	return !errors.As(err, &se)
}

// providerError reads {"error":{"message":...}} from resp, falling back to
// fallback when the body is not in that shape. The key is scrubbed from the
// message in case the provider echoes request details.
func providerError(resp *http.Response, provider, fallback, key string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := fallback
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
		msg = strings.TrimSpace(parsed.Error.Message)
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    policy.RedactSecrets(msg, key),
		Retryable:  reliability.IsRetryableHTTPStatus(resp.StatusCode),
	}
}
