package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxClips = 100
	DefaultMaxBytes = 50 * 1024 * 1024
)

var ErrInvalidClip = errors.New("invalid clip")

// Limits bound the library. Zero values take the defaults.
type Limits struct {
	MaxClips int
	MaxBytes int
}

// EvictFunc is told about clips removed to honor Limits.
type EvictFunc func(evicted []Clip)

// Library is the newest-first clip collection. Every mutation goes through
// it; the store underneath is only persistence.
type Library struct {
	store   Store
	limits  Limits
	onEvict EvictFunc
	now     func() time.Time
	measure func(Clip) int

	mu sync.Mutex
	// sizes caches StoredSize by clip ID.
	sizes map[string]int
}

func New(store Store, limits Limits, onEvict EvictFunc) *Library {
	if limits.MaxClips <= 0 {
		limits.MaxClips = DefaultMaxClips
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	return &Library{
		store:   store,
		limits:  limits,
		onEvict: onEvict,
		now:     time.Now,
		measure: Clip.StoredSize,
		sizes:   make(map[string]int),
	}
}

func (l *Library) Store() Store { return l.store }

// Add inserts clips, assigning IDs and creation times where missing, then
// evicts the oldest clips until both the count and size bounds hold. The
// clips just added are never evicted by their own insertion unless a single
// batch exceeds the bounds on its own.
func (l *Library) Add(ctx context.Context, clips ...Clip) ([]Clip, error) {
	if len(clips) == 0 {
		return nil, nil
	}
	created := l.now().UnixMilli()
	out := make([]Clip, len(clips))
	for i, c := range clips {
		if strings.TrimSpace(c.AudioData) == "" {
			return nil, fmt.Errorf("%w: clip %d has no audio", ErrInvalidClip, i)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt == 0 {
			c.CreatedAt = created
		}
		out[i] = c
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.PutClips(ctx, out); err != nil {
		return nil, fmt.Errorf("save clips: %w", err)
	}
	for _, c := range out {
		l.sizes[c.ID] = l.measure(c)
	}
	if err := l.enforceLimitsLocked(ctx); err != nil {
		return out, err
	}
	return out, nil
}

func (l *Library) enforceLimitsLocked(ctx context.Context) error {
	all, err := l.store.ListClips(ctx)
	if err != nil {
		return fmt.Errorf("list clips: %w", err)
	}
	keep := len(all)
	if keep > l.limits.MaxClips {
		keep = l.limits.MaxClips
	}
	total := 0
	for i := 0; i < keep; i++ {
		total += l.sizeLocked(all[i])
	}
	for keep > 1 && total > l.limits.MaxBytes {
		keep--
		total -= l.sizeLocked(all[keep])
	}
	if keep == len(all) {
		return nil
	}

	evicted := all[keep:]
	ids := make([]string, len(evicted))
	for i, c := range evicted {
		ids[i] = c.ID
	}
	if err := l.store.DeleteClips(ctx, ids); err != nil {
		return fmt.Errorf("evict clips: %w", err)
	}
	for _, id := range ids {
		delete(l.sizes, id)
	}
	if l.onEvict != nil {
		l.onEvict(evicted)
	}
	return nil
}

func (l *Library) List(ctx context.Context) ([]Clip, error) {
	return l.store.ListClips(ctx)
}

func (l *Library) Get(ctx context.Context, id string) (Clip, error) {
	return l.store.GetClip(ctx, id)
}

func (l *Library) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.store.GetClip(ctx, id); err != nil {
		return err
	}
	if err := l.store.DeleteClips(ctx, []string{id}); err != nil {
		return err
	}
	delete(l.sizes, id)
	return nil
}

// sizeLocked returns c's stored size, measuring it only on first sight.
// Clips loaded from a persistent store are measured lazily.
func (l *Library) sizeLocked(c Clip) int {
	if n, ok := l.sizes[c.ID]; ok {
		return n
	}
	n := l.measure(c)
	l.sizes[c.ID] = n
	return n
}

// Usage reports the clip count and the bytes counted against MaxBytes.
func (l *Library) Usage(ctx context.Context) (clips, bytes int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all, err := l.store.ListClips(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range all {
		bytes += l.sizeLocked(c)
	}
	return len(all), bytes, nil
}

// SetTranscript replaces a clip's transcript.
func (l *Library) SetTranscript(ctx context.Context, id string, words []WordTimestamp) (Clip, error) {
	out, err := l.SetTranscripts(ctx, map[string][]WordTimestamp{id: words})
	if err != nil {
		return Clip{}, err
	}
	return out[0], nil
}

// SetTranscripts replaces the transcripts of several clips in one write.
// Nothing is saved if any id is unknown.
func (l *Library) SetTranscripts(ctx context.Context, byID map[string][]WordTimestamp) ([]Clip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Clip, 0, len(byID))
	for id, words := range byID {
		c, err := l.store.GetClip(ctx, id)
		if err != nil {
			return nil, err
		}
		if words == nil {
			words = []WordTimestamp{}
		}
		c.Transcript = words
		out = append(out, c)
	}
	if err := l.store.PutClips(ctx, out); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	for _, c := range out {
		l.sizes[c.ID] = l.measure(c)
	}
	return out, nil
}

// Group returns the parts sharing groupID, ordered by part number.
func (l *Library) Group(ctx context.Context, groupID string) ([]Clip, error) {
	if groupID == "" {
		return nil, nil
	}
	all, err := l.store.ListClips(ctx)
	if err != nil {
		return nil, err
	}
	var parts []Clip
	for _, c := range all {
		if c.GroupID == groupID {
			parts = append(parts, c)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}
