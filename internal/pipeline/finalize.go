package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
)

// Finalize turns the completed chunks into library clips. It is refused
// with *IncompleteError until every chunk is completed. On failure the job
// goes back to the state its chunks imply so finalization can be retried.
func (j *Job) Finalize(ctx context.Context, mode FinalizeMode) ([]library.Clip, error) {
	if mode == "" {
		mode = FinalizeMerge
	}
	j.mu.Lock()
	if j.discarded {
		j.mu.Unlock()
		return nil, ErrDiscarded
	}
	switch j.state {
	case StateFinalizing:
		j.mu.Unlock()
		return nil, ErrBusy
	case StateDone:
		j.mu.Unlock()
		return nil, ErrAlreadyFinalized
	}
	if incomplete := incompleteLocked(j.chunks); incomplete != nil {
		j.mu.Unlock()
		return nil, incomplete
	}
	chunks := append([]Chunk(nil), j.chunks...)
	j.setStateLocked(StateFinalizing)
	j.mu.Unlock()

	start := time.Now()
	clips, skipped, err := j.buildClips(ctx, chunks, mode)
	if err == nil {
		if j.opts.Sink == nil {
			err = errors.New("no clip sink configured")
		} else {
			clips, err = j.opts.Sink.Add(ctx, clips...)
		}
	}
	took := time.Since(start)
	if hook := j.opts.Hooks.Finalized; hook != nil {
		hook(mode, took, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		// Run may not have settled yet.
		restored, _ := deriveState(j.chunks)
		j.setStateLocked(restored)
		j.publishLocked(Event{Type: EventError, Index: -1, Error: err.Error()})
		j.log.Error("finalize failed", "mode", mode, "err", err)
		return nil, err
	}
	ids := make([]string, len(clips))
	for i, c := range clips {
		ids[i] = c.ID
	}
	j.clipIDs = ids
	j.setStateLocked(StateDone)
	j.publishLocked(Event{Type: EventFinalized, Index: -1, ClipIDs: ids, Skipped: skipped})
	j.log.Info("job finalized", "mode", mode, "clips", len(clips), "took", took.Round(time.Millisecond))
	return clips, nil
}

func incompleteLocked(chunks []Chunk) *IncompleteError {
	if len(chunks) == 0 {
		return &IncompleteError{}
	}
	var e IncompleteError
	for _, c := range chunks {
		if c.Status != ChunkCompleted {
			e.Indexes = append(e.Indexes, c.Index)
			e.Statuses = append(e.Statuses, c.Status)
		}
	}
	if len(e.Indexes) == 0 {
		return nil
	}
	return &e
}

func (j *Job) buildClips(ctx context.Context, chunks []Chunk, mode FinalizeMode) ([]library.Clip, []int, error) {
	settings := j.req.Settings()
	switch mode {
	case FinalizeMerge:
		parts := make([]audio.Encoded, len(chunks))
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			parts[i] = audio.Encoded{Data: c.Audio, MimeType: c.MimeType}
			texts[i] = c.Text
		}
		merged, report, err := audio.Merge(ctx, parts, j.opts.MergePolicy)
		if err != nil {
			return nil, nil, fmt.Errorf("merge audio: %w", err)
		}
		if len(report.Skipped) > 0 {
			j.log.Warn("merge skipped undecodable chunks", "skipped", report.Skipped)
		}
		text := strings.Join(texts, "\n\n")
		return []library.Clip{{
			Provider:  j.opts.Provider,
			Title:     library.MergedTitle(j.req.Voice, text),
			Settings:  settings,
			Text:      text,
			AudioData: audio.ToBase64(merged.Data),
			MimeType:  merged.MimeType,
		}}, report.Skipped, nil
	case FinalizeSeparate:
		group := uuid.NewString()
		clips := make([]library.Clip, len(chunks))
		for i, c := range chunks {
			clips[i] = library.Clip{
				Provider:   j.opts.Provider,
				Title:      library.PartTitle(j.req.Voice, i+1),
				Settings:   settings,
				Text:       c.Text,
				AudioData:  audio.ToBase64(c.Audio),
				MimeType:   c.MimeType,
				GroupID:    group,
				PartNumber: i + 1,
			}
		}
		return clips, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid finalize mode %q", mode)
	}
}
