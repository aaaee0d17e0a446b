package align

import (
	"testing"

	"github.com/ent0n29/voiceforge/internal/library"
)

var abc = []library.WordTimestamp{{Word: "a", StartTime: 0, EndTime: 1}, {Word: "b", StartTime: 1, EndTime: 2.5}, {Word: "c", StartTime: 2.5, EndTime: 4}}

func TestHighlightIndexWithTranscript(t *testing.T) {
	cases := []struct {
		at   float64
		want int
	}{
		{0.5, 0},
		{1.0, 1},
		{3.9, 2},
		{4.0, 2},
		{10, 2},
	}
	for _, tc := range cases {
		if got := HighlightIndex(tc.at, abc, 4, 3, 0); got != tc.want {
			t.Fatalf("HighlightIndex(%v) = %d, want %d", tc.at, got, tc.want)
		}
	}
}

func TestHighlightIndexKeepsPreviousBeforeFirstWord(t *testing.T) {
	late := []library.WordTimestamp{{Word: "a", StartTime: 0.8, EndTime: 1}, {Word: "b", StartTime: 1.5, EndTime: 2}}
	if got := HighlightIndex(0.2, late, 2, 2, -1); got != 0 {
		t.Fatalf("before first word with no previous = %d, want 0", got)
	}
	if got := HighlightIndex(0.2, late, 2, 2, 7); got != 1 {
		t.Fatalf("before first word with stale previous = %d, want 1", got)
	}
	if got := HighlightIndex(0.2, late, 2, 2, 1); got != 1 {
		t.Fatalf("before first word = %d, want previous 1", got)
	}
	// Gap between words keeps the earlier word lit.
	if got := HighlightIndex(1.2, late, 2, 2, 0); got != 0 {
		t.Fatalf("gap = %d, want 0", got)
	}
}

func TestTrackerStartsAtFirstWord(t *testing.T) {
	tr := NewTracker("a b", []library.WordTimestamp{{Word: "a", StartTime: 0.5, EndTime: 1}, {Word: "b", StartTime: 1, EndTime: 2}}, 2)
	if got := tr.Update(0.1); got != 0 {
		t.Fatalf("Update(0.1) = %d, want 0", got)
	}
	if got := tr.Update(1.5); got != 1 {
		t.Fatalf("Update(1.5) = %d, want 1", got)
	}
	tr.Reset()
	if got := tr.Update(0.1); got != 0 {
		t.Fatalf("Update(0.1) after Reset = %d, want 0", got)
	}
}

func TestHighlightIndexInterpolates(t *testing.T) {
	cases := []struct {
		at   float64
		want int
	}{
		{5, 5},
		{0, 0},
		{9.99, 9},
		{10, 9},
		{-1, 0},
	}
	for _, tc := range cases {
		if got := HighlightIndex(tc.at, nil, 10, 10, 0); got != tc.want {
			t.Fatalf("HighlightIndex(%v) = %d, want %d", tc.at, got, tc.want)
		}
	}
	if got := HighlightIndex(3, nil, 0, 10, 4); got != 0 {
		t.Fatalf("unknown duration = %d, want 0", got)
	}
	if got := HighlightIndex(3, nil, 10, 0, 0); got != -1 {
		t.Fatalf("no words = %d, want -1", got)
	}
}

func TestTrackerSwitchesToTranscript(t *testing.T) {
	tr := NewTracker("one two three four", nil, 4)
	if got := tr.Update(2.1); got != 2 {
		t.Fatalf("interpolated = %d, want 2", got)
	}
	tr.SetTranscript("one two three four", abc)
	if got := tr.Update(2.1); got != 1 {
		t.Fatalf("after transcript = %d, want 1", got)
	}
	tr.Reset()
	if got := tr.Update(5); got != 2 {
		t.Fatalf("past end = %d, want 2", got)
	}
}

func TestWords(t *testing.T) {
	if got := Words("x y", abc); len(got) != 3 || got[2] != "c" {
		t.Fatalf("Words(transcript) = %v", got)
	}
	if got := Words(" x  y ", nil); len(got) != 2 || got[1] != "y" {
		t.Fatalf("Words(text) = %v", got)
	}
}

func BenchmarkHighlightIndex(b *testing.B) {
	words := make([]library.WordTimestamp, 5000)
	for i := range words {
		words[i] = library.WordTimestamp{Word: "w", StartTime: float64(i) * 0.3, EndTime: float64(i)*0.3 + 0.3}
	}
	for i := 0; i < b.N; i++ {
		_ = HighlightIndex(float64(i%1500), words, 1500, len(words), 0)
	}
}
