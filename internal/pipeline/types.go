package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/voiceforge/internal/library"
)

type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkFailed     ChunkStatus = "failed"
)

type State string

const (
	StateNotStarted  State = "not_started"
	StateDispatching State = "dispatching"
	StateCompleted   State = "completed"
	StatePartial     State = "partial"
	StateFinalizing  State = "finalizing"
	StateDone        State = "done"
)

// FinalizeMode chooses how completed chunks become clips.
type FinalizeMode string

const (
	FinalizeMerge    FinalizeMode = "merge"
	FinalizeSeparate FinalizeMode = "separate"
)

func ParseFinalizeMode(v string) (FinalizeMode, error) {
	switch FinalizeMode(strings.ToLower(strings.TrimSpace(v))) {
	case "", FinalizeMerge:
		return FinalizeMerge, nil
	case FinalizeSeparate:
		return FinalizeSeparate, nil
	default:
		return "", fmt.Errorf("invalid finalize mode %q (expected merge|separate)", v)
	}
}

var (
	ErrNotFound         = errors.New("job not found")
	ErrAlreadyStarted   = errors.New("job already started")
	ErrNotRetryable     = errors.New("chunk is not in a retryable state")
	ErrIndexOutOfRange  = errors.New("chunk index out of range")
	ErrBusy             = errors.New("job is finalizing")
	ErrAlreadyFinalized = errors.New("job already finalized")
	ErrDiscarded        = errors.New("job was discarded")
	ErrEmptyJob         = errors.New("job has no chunks")
)

// IncompleteError rejects finalization while chunks are unresolved.
// Indexes are zero-based; the message numbers chunks from 1.
type IncompleteError struct {
	Indexes  []int
	Statuses []ChunkStatus
}

func (e *IncompleteError) Error() string {
	parts := make([]string, len(e.Indexes))
	for i, idx := range e.Indexes {
		parts[i] = fmt.Sprintf("chunk %d (%s)", idx+1, e.Statuses[i])
	}
	return "cannot finalize until every chunk is completed: " + strings.Join(parts, ", ")
}

// Chunk is one unit of text and its synthesis outcome.
type Chunk struct {
	Index    int         `json:"index"`
	Text     string      `json:"text"`
	Status   ChunkStatus `json:"status"`
	Audio    []byte      `json:"-"`
	MimeType string      `json:"mimeType,omitempty"`
	Error    string      `json:"error,omitempty"`
	// Retryable is false for failures that will fail again unchanged, such
	// as a missing credential.
	Retryable bool `json:"retryable,omitempty"`
	Attempts  int  `json:"attempts"`
}

// ClipSink receives finalized clips; *library.Library satisfies it.
type ClipSink interface {
	Add(ctx context.Context, clips ...library.Clip) ([]library.Clip, error)
}

// Hooks observe job progress. Any field may be nil.
type Hooks struct {
	ChunkSettled func(provider library.Provider, c Chunk, took time.Duration)
	Finalized    func(mode FinalizeMode, took time.Duration, err error)
}

type EventType string

const (
	EventChunk     EventType = "chunk_status"
	EventState     EventType = "job_state"
	EventFinalized EventType = "job_finalized"
	EventError     EventType = "job_error"
)

// Event is published to job subscribers on every state change.
type Event struct {
	Type    EventType   `json:"type"`
	JobID   string      `json:"jobId"`
	Index   int         `json:"index"`
	Status  ChunkStatus `json:"status,omitempty"`
	State   State       `json:"state,omitempty"`
	Error   string      `json:"error,omitempty"`
	ClipIDs []string    `json:"clipIds,omitempty"`
	Skipped []int       `json:"skipped,omitempty"`
	At      time.Time   `json:"at"`
}

// Snapshot is a consistent copy of a job's state.
type Snapshot struct {
	ID        string           `json:"id"`
	Provider  library.Provider `json:"provider"`
	State     State            `json:"state"`
	Chunks    []Chunk          `json:"chunks"`
	Completed int              `json:"completed"`
	Failed    int              `json:"failed"`
	ClipIDs   []string         `json:"clipIds,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
