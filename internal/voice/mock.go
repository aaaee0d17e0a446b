package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
)

// MockSynthesizer renders silence sized to the text, so the pipeline can
// run end to end without provider keys.
type MockSynthesizer struct {
	SampleRate int
	// SecondsPerWord sets the clip length; 0 means 0.05s per word.
	SecondsPerWord float64

	mu    sync.Mutex
	calls int
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{SampleRate: audio.DefaultPCMSampleRate}
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	perWord := m.SecondsPerWord
	if perWord <= 0 {
		perWord = 0.05
	}
	rate := m.SampleRate
	if rate <= 0 {
		rate = audio.DefaultPCMSampleRate
	}
	frames := int(float64(len(strings.Fields(req.Text))) * perWord * float64(rate))
	wav, err := audio.EncodeWAV([][]float32{make([]float32, frames)}, rate)
	if err != nil {
		return Result{}, err
	}
	return Result{Audio: wav, MimeType: audio.FormatWAV.MimeType()}, nil
}

// Calls returns how many synthesis calls were served.
func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockTranscriber spreads the words of Text evenly over the audio duration.
type MockTranscriber struct {
	Text string
}

func (m MockTranscriber) Transcribe(_ context.Context, data []byte, _ string, _ string) ([]library.WordTimestamp, error) {
	if len(data) > MaxTranscribeBytes {
		return nil, &SizeLimitError{Size: len(data), Limit: MaxTranscribeBytes}
	}
	buf, err := audio.DecodeToSamples(data)
	if err != nil {
		return nil, fmt.Errorf("mock transcribe: %w", err)
	}
	words := strings.Fields(m.Text)
	if len(words) == 0 {
		return []library.WordTimestamp{}, nil
	}
	step := buf.Duration().Seconds() / float64(len(words))
	out := make([]library.WordTimestamp, len(words))
	for i, w := range words {
		out[i] = library.WordTimestamp{Word: w, StartTime: float64(i) * step, EndTime: float64(i+1) * step}
	}
	return out, nil
}
