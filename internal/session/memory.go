package session

import (
	"context"
	"sync"
	"time"

	"github.com/stakehouse/rgs/internal/domain"
)

// MemoryStore is an in-process Store. Suitable for single-node
// deployments and tests; swap in a shared backend for clusters.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return ErrDuplicate
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSession(&s)
	return &out, nil
}

func (m *MemoryStore) Update(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != s.Version-1 {
		return ErrConflict
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) CleanupExpired(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) && !s.HasActiveBonus() {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// cloneSession copies a session so callers never share backing slices
// with the store.
func cloneSession(s *domain.Session) domain.Session {
	out := *s
	out.PublicState = append([]byte(nil), s.PublicState...)
	out.PrivateState = append([]byte(nil), s.PrivateState...)
	if s.Bonus != nil {
		b := *s.Bonus
		out.Bonus = &b
	}
	return out
}
