package observability

import (
	"errors"
	"testing"
	"time"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	w.Observe("synthesize_gemini", 5000)
	w.Observe("synthesize_gemini", 7000)
	w.Observe("synthesize_gemini", 9000)
	w.ObserveIndicator("chunk_failed")
	w.ObserveIndicator("chunk_failed")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "synthesize_gemini" || s.Samples != 3 {
		t.Fatalf("stage = %+v", s)
	}
	if s.LastMS != 9000 || s.P50MS != 7000 || s.MaxMS != 9000 {
		t.Fatalf("LastMS=%.2f P50MS=%.2f MaxMS=%.2f", s.LastMS, s.P50MS, s.MaxMS)
	}
	if s.P95MS <= 7000 || s.P95MS > 9000 {
		t.Fatalf("P95MS = %.2f, want (7000,9000]", s.P95MS)
	}
	if s.TargetP95MS != 30000 {
		t.Fatalf("TargetP95MS = %.2f, want 30000", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v", snap.Indicators)
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	w := newLatencyWindow(4)
	for i := 1; i <= 10; i++ {
		w.Observe("transcribe", float64(i*100))
	}
	s := w.Snapshot().Stages[0]
	if s.Samples != 4 {
		t.Fatalf("Samples = %d, want 4", s.Samples)
	}
	if s.AvgMS != 850 {
		t.Fatalf("AvgMS = %.2f, want 850 (last four samples)", s.AvgMS)
	}
}

func TestLatencyWindowIgnoresInvalid(t *testing.T) {
	w := newLatencyWindow(4)
	w.Observe("", 10)
	w.Observe("merge", -1)
	w.ObserveIndicator("  ")
	if snap := w.Snapshot(); len(snap.Stages) != 0 || len(snap.Indicators) != 0 {
		t.Fatalf("snapshot = %+v, want empty", snap)
	}
}

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics("voiceforge_observability_test")
	m.ObserveChunk("chirp", "failed", 1200*time.Millisecond)
	m.ObserveFinalize("merge", 40*time.Millisecond, errors.New("boom"))
	m.ObserveEvictions(2)

	snap := m.SnapshotLatency()
	if len(snap.Stages) != 2 {
		t.Fatalf("stages = %+v", snap.Stages)
	}
	counts := map[string]int{}
	for _, ind := range snap.Indicators {
		counts[ind.Name] = ind.Count
	}
	if counts["chunk_failed"] != 1 || counts["clip_evicted"] != 2 {
		t.Fatalf("indicators = %v", counts)
	}
}
