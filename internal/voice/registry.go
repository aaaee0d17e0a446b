package voice

import (
	"github.com/ent0n29/voiceforge/internal/library"
)

// Registry builds provider clients for a set of credentials. With Mock set
// every backend is replaced by the local fakes.
type Registry struct {
	opts Options
	mock *MockSynthesizer
}

func NewRegistry(opts Options, mock bool) *Registry {
	r := &Registry{opts: opts}
	if mock {
		r.mock = NewMockSynthesizer()
	}
	return r
}

func (r *Registry) Mock() bool { return r.mock != nil }

func (r *Registry) Synthesizer(kind Kind, creds library.Credentials) (Synthesizer, error) {
	if r.mock != nil {
		if _, ok := CatalogFor(kind); !ok {
			return nil, invalidf("unknown provider %q", kind)
		}
		return r.mock, nil
	}
	return NewSynthesizer(kind, creds, r.opts)
}

// Transcriber returns the speech-to-text client. script is the clip's
// source text; only the mock uses it.
func (r *Registry) Transcriber(creds library.Credentials, script string) Transcriber {
	if r.mock != nil {
		return MockTranscriber{Text: script}
	}
	return NewSpeechTranscriber(creds.GCloud, r.opts)
}
