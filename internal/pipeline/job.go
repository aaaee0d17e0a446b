package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/policy"
	"github.com/ent0n29/voiceforge/internal/voice"
)

// Options configure a job. Zero values are usable.
type Options struct {
	Provider library.Provider
	// MaxConcurrency bounds in-flight synthesis calls; 0 dispatches every
	// chunk at once.
	MaxConcurrency int
	// AutoFinalize, when set, finalizes in this mode as soon as every chunk
	// is completed, after Run or after a retry. When empty, a retry that
	// completes the job still merges it.
	AutoFinalize FinalizeMode
	MergePolicy  audio.MergePolicy
	Sink         ClipSink
	Hooks        Hooks
	Logger       *log.Logger
}

// Job drives one text through synthesis, retry and finalization.
type Job struct {
	id   string
	req  voice.Request
	opts Options
	log  *log.Logger

	mu        sync.Mutex
	chunks    []Chunk
	state     State
	clipIDs   []string
	discarded bool
	createdAt time.Time
	updatedAt time.Time
	subs      map[int]chan Event
	nextSub   int
}

// NewJob creates a job with one pending chunk per text. req is the
// template for every chunk; its Text is the full source and is replaced per
// chunk at dispatch.
func NewJob(id string, texts []string, req voice.Request, opts Options) *Job {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if opts.MergePolicy == "" {
		opts.MergePolicy = audio.MergeStrict
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, Text: t, Status: ChunkPending}
	}
	now := time.Now().UTC()
	return &Job{
		id:        id,
		req:       req,
		opts:      opts,
		log:       logger.With("job", id),
		chunks:    chunks,
		state:     StateNotStarted,
		createdAt: now,
		updatedAt: now,
		subs:      make(map[int]chan Event),
	}
}

func (j *Job) ID() string { return j.id }

// Request returns the request template with Text set to the full source.
func (j *Job) Request() voice.Request { return j.req }

// Run dispatches every chunk and blocks until each has settled. Synthesis
// failures are recorded on their chunk and never abort siblings; the
// returned error is only for jobs that could not run at all.
func (j *Job) Run(ctx context.Context, synth voice.Synthesizer) error {
	j.mu.Lock()
	if j.discarded {
		j.mu.Unlock()
		return ErrDiscarded
	}
	if j.state != StateNotStarted {
		j.mu.Unlock()
		return ErrAlreadyStarted
	}
	if len(j.chunks) == 0 {
		j.mu.Unlock()
		return ErrEmptyJob
	}
	j.setStateLocked(StateDispatching)
	indexes := make([]int, len(j.chunks))
	for i := range j.chunks {
		indexes[i] = i
	}
	j.mu.Unlock()

	j.log.Info("dispatching chunks", "chunks", len(indexes), "provider", j.opts.Provider)
	j.dispatch(ctx, synth, indexes)

	j.mu.Lock()
	j.settleStateLocked()
	j.mu.Unlock()
	j.maybeAutoFinalize(ctx, j.opts.AutoFinalize)
	return nil
}

// Retry re-dispatches one failed chunk. When that leaves every chunk
// completed the job is finalized, merged unless AutoFinalize says otherwise.
func (j *Job) Retry(ctx context.Context, index int, synth voice.Synthesizer) error {
	if err := j.claim([]int{index}); err != nil {
		return err
	}
	j.dispatch(ctx, synth, []int{index})
	j.mu.Lock()
	j.settleStateLocked()
	j.mu.Unlock()
	j.maybeAutoFinalize(ctx, j.retryFinalizeMode())
	return nil
}

// RetryFailed retries every currently failed chunk and returns how many
// were re-dispatched.
func (j *Job) RetryFailed(ctx context.Context, synth voice.Synthesizer) (int, error) {
	j.mu.Lock()
	var failed []int
	for _, c := range j.chunks {
		if c.Status == ChunkFailed {
			failed = append(failed, c.Index)
		}
	}
	j.mu.Unlock()
	if len(failed) == 0 {
		return 0, nil
	}
	if err := j.claim(failed); err != nil {
		return 0, err
	}
	j.dispatch(ctx, synth, failed)
	j.mu.Lock()
	j.settleStateLocked()
	j.mu.Unlock()
	j.maybeAutoFinalize(ctx, j.retryFinalizeMode())
	return len(failed), nil
}

// claim moves failed chunks back to processing so no two retries of the
// same chunk run at once.
func (j *Job) claim(indexes []int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.discarded {
		return ErrDiscarded
	}
	switch j.state {
	case StateFinalizing:
		return ErrBusy
	case StateDone:
		return ErrAlreadyFinalized
	}
	for _, idx := range indexes {
		if idx < 0 || idx >= len(j.chunks) {
			return ErrIndexOutOfRange
		}
		if j.chunks[idx].Status != ChunkFailed {
			return ErrNotRetryable
		}
	}
	for _, idx := range indexes {
		j.replaceLocked(idx, func(c Chunk) Chunk {
			c.Status = ChunkProcessing
			c.Error = ""
			c.Retryable = false
			return c
		})
	}
	j.setStateLocked(StateDispatching)
	return nil
}

func (j *Job) dispatch(ctx context.Context, synth voice.Synthesizer, indexes []int) {
	var g errgroup.Group
	if j.opts.MaxConcurrency > 0 {
		g.SetLimit(j.opts.MaxConcurrency)
	}
	for _, idx := range indexes {
		idx := idx
		j.mu.Lock()
		text := j.chunks[idx].Text
		if j.chunks[idx].Status == ChunkPending {
			j.replaceLocked(idx, func(c Chunk) Chunk {
				c.Status = ChunkProcessing
				return c
			})
		}
		j.mu.Unlock()

		g.Go(func() error {
			req := j.req
			req.Text = text
			start := time.Now()
			res, err := synth.Synthesize(ctx, req)
			j.record(idx, res, err, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
}

// record applies one synthesis outcome by replacing that chunk in a fresh
// copy of the collection.
func (j *Job) record(idx int, res voice.Result, err error, took time.Duration) {
	j.mu.Lock()
	if j.discarded {
		j.mu.Unlock()
		return
	}
	c := j.replaceLocked(idx, func(c Chunk) Chunk {
		c.Attempts++
		if err != nil {
			c.Status = ChunkFailed
			c.Error = err.Error()
			c.Retryable = voice.IsRetryable(err)
			c.Audio, c.MimeType = nil, ""
			return c
		}
		c.Status = ChunkCompleted
		c.Audio, c.MimeType = res.Audio, res.MimeType
		return c
	})
	hook := j.opts.Hooks.ChunkSettled
	j.mu.Unlock()

	if err != nil {
		j.log.Warn("chunk failed", "chunk", idx+1, "err", err, "text", policy.Preview(c.Text, 40))
	} else {
		j.log.Debug("chunk completed", "chunk", idx+1, "took", took.Round(time.Millisecond), "mime", c.MimeType)
	}
	if hook != nil {
		hook(j.opts.Provider, c, took)
	}
}

// replaceLocked swaps in a new chunk collection that differs from the
// current one only at idx, publishes the change and returns the new chunk.
func (j *Job) replaceLocked(idx int, fn func(Chunk) Chunk) Chunk {
	next := make([]Chunk, len(j.chunks))
	for i, c := range j.chunks {
		if i == idx {
			c = fn(c)
		}
		next[i] = c
	}
	j.chunks = next
	j.updatedAt = time.Now().UTC()
	c := next[idx]
	j.publishLocked(Event{Type: EventChunk, Index: idx, Status: c.Status, Error: c.Error})
	return c
}

func (j *Job) setStateLocked(s State) {
	if j.state == s {
		return
	}
	j.state = s
	j.updatedAt = time.Now().UTC()
	j.publishLocked(Event{Type: EventState, Index: -1, State: s})
}

func (j *Job) settleStateLocked() {
	if j.state != StateDispatching {
		return
	}
	if s, ok := deriveState(j.chunks); ok {
		j.setStateLocked(s)
	}
}

// deriveState reports the state the chunks imply, or false while any
// chunk is still pending or processing.
func deriveState(chunks []Chunk) (State, bool) {
	state := StateCompleted
	for _, c := range chunks {
		switch c.Status {
		case ChunkPending, ChunkProcessing:
			return StateDispatching, false
		case ChunkFailed:
			state = StatePartial
		}
	}
	return state, true
}

func (j *Job) retryFinalizeMode() FinalizeMode {
	if j.opts.AutoFinalize == "" {
		return FinalizeMerge
	}
	return j.opts.AutoFinalize
}

func (j *Job) maybeAutoFinalize(ctx context.Context, mode FinalizeMode) {
	if mode == "" {
		return
	}
	j.mu.Lock()
	ready := j.state == StateCompleted && !j.discarded
	j.mu.Unlock()
	if !ready {
		return
	}
	if _, err := j.Finalize(ctx, mode); err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, ErrAlreadyFinalized) {
		j.log.Error("auto finalize failed", "mode", mode, "err", err)
	}
}

// Done reports whether every chunk is completed.
func (j *Job) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range j.chunks {
		if c.Status != ChunkCompleted {
			return false
		}
	}
	return len(j.chunks) > 0
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		ID:        j.id,
		Provider:  j.opts.Provider,
		State:     j.state,
		Chunks:    make([]Chunk, len(j.chunks)),
		ClipIDs:   append([]string(nil), j.clipIDs...),
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
	copy(s.Chunks, j.chunks)
	for _, c := range j.chunks {
		switch c.Status {
		case ChunkCompleted:
			s.Completed++
		case ChunkFailed:
			s.Failed++
		}
	}
	return s
}

func (j *Job) lastActivity() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.updatedAt
}

// busy reports whether network or merge work is in flight.
func (j *Job) busy() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == StateDispatching || j.state == StateFinalizing
}

// Subscribe streams job events until the returned cancel func is called or
// the job is discarded.
func (j *Job) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 256)
	j.mu.Lock()
	if j.discarded {
		j.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	j.nextSub++
	id := j.nextSub
	j.subs[id] = ch
	j.mu.Unlock()

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if c, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(c)
		}
	}
}

func (j *Job) publishLocked(evt Event) {
	evt.JobID = j.id
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	for _, ch := range j.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// discard drops the job. Results of calls still in flight are ignored.
func (j *Job) discard() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.discarded {
		return
	}
	j.discarded = true
	for id, ch := range j.subs {
		delete(j.subs, id)
		close(ch)
	}
}
