package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/voiceforge/internal/voice"
)

// Manager is the registry of live jobs. Jobs idle longer than the
// inactivity timeout are discarded by the janitor unless work is in flight.
type Manager struct {
	mu                sync.RWMutex
	jobs              map[string]*Job
	inactivityTimeout time.Duration
	onExpire          func(Snapshot)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		jobs:              make(map[string]*Job),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a new job for the given chunk texts.
func (m *Manager) Create(texts []string, req voice.Request, opts Options) *Job {
	j := NewJob(uuid.NewString(), texts, req, opts)
	m.mu.Lock()
	m.jobs[j.ID()] = j
	m.mu.Unlock()
	return j
}

func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// Discard removes the job and drops any results still in flight.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	delete(m.jobs, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	j.discard()
	return nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

// ActiveCount returns the number of registered jobs.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Job

	m.mu.Lock()
	for id, j := range m.jobs {
		if j.busy() {
			continue
		}
		if now.Sub(j.lastActivity()) < m.inactivityTimeout {
			continue
		}
		delete(m.jobs, id)
		expired = append(expired, j)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, j := range expired {
		snap := j.Snapshot()
		j.discard()
		if hook != nil {
			hook(snap)
		}
	}
}
