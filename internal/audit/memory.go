package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stakehouse/rgs/internal/domain"
)

// MemoryRecorder is an in-process Recorder for tests and local
// development.
type MemoryRecorder struct {
	mu      sync.RWMutex
	rounds  map[string]domain.GameRoundRecord
	FailAll error // when set, every operation fails with this error
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{rounds: make(map[string]domain.GameRoundRecord)}
}

func (m *MemoryRecorder) RecordRound(_ context.Context, record *domain.GameRoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll != nil {
		return m.FailAll
	}
	if _, ok := m.rounds[record.RoundID]; ok {
		return domain.ErrAuditWriteFailed(record.RoundID, fmt.Errorf("round already recorded"))
	}
	m.rounds[record.RoundID] = *record
	return nil
}

func (m *MemoryRecorder) GetRound(_ context.Context, roundID string) (*domain.GameRoundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailAll != nil {
		return nil, m.FailAll
	}
	record, ok := m.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("round %s: %w", roundID, ErrRoundNotFound)
	}
	return &record, nil
}

func (m *MemoryRecorder) GetSessionRounds(_ context.Context, sessionID string) ([]*domain.GameRoundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailAll != nil {
		return nil, m.FailAll
	}
	var out []*domain.GameRoundRecord
	for _, record := range m.rounds {
		if record.SessionID == sessionID {
			r := record
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Tamper overwrites the stored outcome payload for a round, bypassing
// the append-only rule. Test helper for verifying hash detection.
func (m *MemoryRecorder) Tamper(roundID string, outcome []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := m.rounds[roundID]
	record.Outcome = outcome
	m.rounds[roundID] = record
}

// Count returns the number of recorded rounds.
func (m *MemoryRecorder) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rounds)
}
