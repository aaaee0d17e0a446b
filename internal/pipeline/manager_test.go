package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerCreateGetDiscard(t *testing.T) {
	m := NewManager(time.Minute)
	j := m.Create([]string{"a", "b"}, testRequest(), Options{})
	if j.ID() == "" {
		t.Fatalf("job ID should not be empty")
	}
	got, err := m.Get(j.ID())
	if err != nil || got != j {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}
	if err := m.Discard(j.ID()); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if err := m.Discard(j.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Discard() error = %v, want ErrNotFound", err)
	}
	if err := j.Run(context.Background(), newScriptedSynth()); !errors.Is(err, ErrDiscarded) {
		t.Fatalf("Run() after discard error = %v, want ErrDiscarded", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	var expired atomic.Int32
	m.SetExpireHook(func(Snapshot) { expired.Add(1) })
	j := m.Create([]string{"a"}, testRequest(), Options{})
	events, _ := j.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	if _, err := m.Get(j.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if expired.Load() != 1 {
		t.Fatalf("expire hook calls = %d, want 1", expired.Load())
	}
	if _, ok := <-events; ok {
		t.Fatalf("subscription should be closed after expiry")
	}
}

func TestPlan(t *testing.T) {
	chunks, err := Plan("  short text  ", 500, false)
	if err != nil || len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("Plan(short) = %q, %v", chunks, err)
	}

	long := "one two three. four five six. seven eight nine."
	_, err = Plan(long, 4, false)
	var tooLong *TooLongError
	if !errors.As(err, &tooLong) || tooLong.Words != 9 || tooLong.Limit != 4 {
		t.Fatalf("Plan(long, off) error = %v", err)
	}

	chunks, err = Plan(long, 4, true)
	if err != nil {
		t.Fatalf("Plan(long, on) error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Plan(long, on) = %q, want 3 chunks", chunks)
	}

	if _, err := Plan(" \n ", 500, true); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("Plan(blank) error = %v, want ErrEmptyText", err)
	}
}
