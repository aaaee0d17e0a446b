package library

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore keeps everything in process. Used for tests and when no
// persistent store is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	clips    map[string]Clip
	settings *AppSettings
	creds    Credentials
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{clips: make(map[string]Clip)}
}

func (s *InMemoryStore) ListClips(_ context.Context) ([]Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Clip, 0, len(s.clips))
	for _, c := range s.clips {
		out = append(out, cloneClip(c))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) GetClip(_ context.Context, id string) (Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clips[id]
	if !ok {
		return Clip{}, ErrNotFound
	}
	return cloneClip(c), nil
}

func (s *InMemoryStore) PutClips(_ context.Context, clips []Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clips {
		s.clips[c.ID] = cloneClip(c)
	}
	return nil
}

func (s *InMemoryStore) DeleteClips(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.clips, id)
	}
	return nil
}

func (s *InMemoryStore) LoadSettings(_ context.Context) (AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return DefaultAppSettings(), nil
	}
	return *s.settings, nil
}

func (s *InMemoryStore) SaveSettings(_ context.Context, settings AppSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

func (s *InMemoryStore) LoadCredentials(_ context.Context) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, nil
}

func (s *InMemoryStore) SaveCredentials(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func cloneClip(c Clip) Clip {
	if c.Transcript != nil {
		c.Transcript = append([]WordTimestamp(nil), c.Transcript...)
	}
	return c
}

// sortNewestFirst orders by CreatedAt descending; ties keep the lower part
// number first so grouped parts read in order.
func sortNewestFirst(clips []Clip) {
	sort.SliceStable(clips, func(i, j int) bool {
		if clips[i].CreatedAt != clips[j].CreatedAt {
			return clips[i].CreatedAt > clips[j].CreatedAt
		}
		if clips[i].PartNumber != clips[j].PartNumber {
			return clips[i].PartNumber < clips[j].PartNumber
		}
		return clips[i].ID < clips[j].ID
	})
}
