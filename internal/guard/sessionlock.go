// Package guard holds the in-process protections around the saga: the
// per-session advisory lock that serializes rounds on one session, and
// the circuit breaker in front of the wallet.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/stakehouse/rgs/internal/domain"
)

// SessionLocks serializes sagas per session id: at most one round is
// in flight for a session at any time. Acquisition waits a bounded
// time and then fails fast with SESSION_BUSY rather than queueing
// indefinitely. The lock must never be held across a service-boundary
// call by anyone except the saga that owns it.
type SessionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	maxWait time.Duration
}

type lockEntry struct {
	ch   chan struct{} // buffered(1); holding the token = holding the lock
	refs int
}

// NewSessionLocks creates a lock arena with the given bounded wait.
func NewSessionLocks(maxWait time.Duration) *SessionLocks {
	return &SessionLocks{
		entries: make(map[string]*lockEntry),
		maxWait: maxWait,
	}
}

// Acquire takes the lock for a session id. On success the returned
// release function must be called exactly once. On timeout or context
// cancellation it returns SESSION_BUSY and the caller must not proceed.
func (sl *SessionLocks) Acquire(ctx context.Context, sessionID string) (func(), error) {
	entry := sl.ref(sessionID)

	timer := time.NewTimer(sl.maxWait)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-entry.ch
				sl.unref(sessionID)
			})
		}
		return release, nil
	case <-timer.C:
		sl.unref(sessionID)
		return nil, domain.ErrSessionBusy(sessionID)
	case <-ctx.Done():
		sl.unref(sessionID)
		return nil, domain.ErrSessionBusy(sessionID)
	}
}

// InFlight reports whether a session currently holds its lock.
func (sl *SessionLocks) InFlight(sessionID string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	entry, ok := sl.entries[sessionID]
	return ok && len(entry.ch) > 0
}

func (sl *SessionLocks) ref(sessionID string) *lockEntry {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	entry, ok := sl.entries[sessionID]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		sl.entries[sessionID] = entry
	}
	entry.refs++
	return entry
}

// unref drops a reference and frees the entry when nobody holds or
// waits on it, so the arena does not grow with dead session ids.
func (sl *SessionLocks) unref(sessionID string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	entry, ok := sl.entries[sessionID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(sl.entries, sessionID)
	}
}
