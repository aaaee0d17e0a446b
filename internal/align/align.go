// Package align maps playback position to the word being spoken.
package align

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ent0n29/voiceforge/internal/library"
)

// HighlightIndex returns the index of the current word at time current
// (seconds). With a transcript the word whose [start, end) span contains
// current wins; past the last word the last index is returned; before the
// first word (or in a gap between words) previous is kept, clamped to the
// word range. Without a transcript the index is interpolated linearly over
// duration.
//
// The result is in [0, wordCount-1], or -1 only when there are no words.
func HighlightIndex(current float64, transcript []library.WordTimestamp, duration float64, wordCount, previous int) int {
	if len(transcript) > 0 {
		return transcriptIndex(current, transcript, previous)
	}
	if wordCount <= 0 {
		return -1
	}
	if duration <= 0 || current <= 0 || math.IsNaN(current) {
		return clamp(0, wordCount)
	}
	idx := int(math.Floor(current / duration * float64(wordCount)))
	return clamp(idx, wordCount)
}

func transcriptIndex(current float64, words []library.WordTimestamp, previous int) int {
	last := len(words) - 1
	if current >= words[last].EndTime {
		return last
	}
	// Words are time-ascending: the candidate is the last word starting at
	// or before current.
	i := sort.Search(len(words), func(i int) bool { return words[i].StartTime > current }) - 1
	if i >= 0 && current < words[i].EndTime {
		return i
	}
	return clamp(previous, len(words))
}

func clamp(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// Words returns the display words: the transcript's when present, else the
// whitespace-split text.
func Words(text string, transcript []library.WordTimestamp) []string {
	if len(transcript) > 0 {
		out := make([]string, len(transcript))
		for i, w := range transcript {
			out[i] = w.Word
		}
		return out
	}
	return strings.Fields(text)
}

// Tracker follows one playback session. It is safe for concurrent use.
//
// A transcript attached mid-playback takes effect on the next Update; the
// previous index carries over only as the value kept before the first word.
type Tracker struct {
	mu         sync.Mutex
	transcript []library.WordTimestamp
	duration   float64
	wordCount  int
	index      int
}

func NewTracker(text string, transcript []library.WordTimestamp, duration float64) *Tracker {
	t := &Tracker{duration: duration}
	t.setTranscriptLocked(text, transcript)
	return t
}

func (t *Tracker) SetTranscript(text string, transcript []library.WordTimestamp) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setTranscriptLocked(text, transcript)
	if t.index >= t.wordCount {
		t.index = max(t.wordCount-1, 0)
	}
}

func (t *Tracker) setTranscriptLocked(text string, transcript []library.WordTimestamp) {
	t.transcript = append([]library.WordTimestamp(nil), transcript...)
	if len(transcript) > 0 {
		t.wordCount = len(transcript)
	} else {
		t.wordCount = len(strings.Fields(text))
	}
}

func (t *Tracker) SetDuration(d float64) {
	t.mu.Lock()
	t.duration = d
	t.mu.Unlock()
}

// Update moves the tracker to current and returns the word index.
func (t *Tracker) Update(current float64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.index = HighlightIndex(current, t.transcript, t.duration, t.wordCount, t.index)
	return t.index
}

// Reset forgets the previous index, e.g. after a seek to the start.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.index = 0
	t.mu.Unlock()
}
