package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/infra"
)

// Manager enforces the session lifecycle rules on top of a Store:
// private state is sealed immediately before every write and opened
// immediately after every read, updates refresh the activity timestamp,
// and sessions with an active bonus cannot be deleted.
type Manager struct {
	store  Store
	cipher *infra.StateCipher
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager creates a session manager with the given store, state
// cipher, and idle TTL.
func NewManager(store Store, cipher *infra.StateCipher, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{store: store, cipher: cipher, ttl: ttl, logger: logger}
}

// CreateParams holds the input for Create.
type CreateParams struct {
	PlayerID     string
	OperatorID   string
	GameCode     string
	Currency     string
	PublicState  json.RawMessage
	PrivateState json.RawMessage
}

// Create builds a new session with a fresh id and persists it.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*domain.Session, error) {
	if err := domain.ValidateCurrency(params.Currency); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateGameCode(params.GameCode); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	now := time.Now().UTC()
	s := &domain.Session{
		ID:           uuid.New().String(),
		PlayerID:     params.PlayerID,
		OperatorID:   params.OperatorID,
		GameCode:     params.GameCode,
		Currency:     params.Currency,
		CreatedAt:    now,
		LastActivity: now,
		Version:      1,
		PublicState:  params.PublicState,
		PrivateState: params.PrivateState,
	}

	stored, err := m.seal(s)
	if err != nil {
		return nil, err
	}
	if err := m.store.Create(ctx, stored); err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			return nil, domain.ErrSessionExists(s.ID)
		default:
			return nil, domain.ErrSessionUnavailable(err)
		}
	}

	m.logger.Info("session created",
		"session_id", s.ID,
		"player_id", s.PlayerID,
		"game_code", s.GameCode,
		"currency", s.Currency)

	return s, nil
}

// Get fetches a session and decrypts its private state. A session that
// outlived the idle TTL reads as not found even before the sweep has
// removed it; sessions holding an unresolved bonus stay readable.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Session, error) {
	stored, err := m.store.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, domain.ErrSessionNotFound(id)
		default:
			return nil, domain.ErrSessionUnavailable(err)
		}
	}
	if stored.Expired(time.Now().UTC(), m.ttl) && !stored.HasActiveBonus() {
		return nil, domain.ErrSessionNotFound(id)
	}
	return m.open(stored)
}

// Update replaces the stored record with s. The caller's Version must
// match what it read; a mismatch means another saga won the race and
// the update fails with SESSION_CONFLICT. On success s carries the new
// version and a refreshed activity timestamp.
func (m *Manager) Update(ctx context.Context, s *domain.Session) error {
	next := *s
	next.Version = s.Version + 1
	next.Touch(time.Now().UTC())

	stored, err := m.seal(&next)
	if err != nil {
		return err
	}
	if err := m.store.Update(ctx, stored); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return domain.ErrSessionNotFound(s.ID)
		case errors.Is(err, ErrConflict):
			return domain.ErrSessionConflict(s.ID)
		default:
			return domain.ErrSessionUnavailable(err)
		}
	}

	s.Version = next.Version
	s.LastActivity = next.LastActivity
	return nil
}

// Delete removes a session. Sessions with an unresolved bonus are
// protected: the player still has steps to play through.
func (m *Manager) Delete(ctx context.Context, id string) error {
	stored, err := m.store.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return domain.ErrSessionNotFound(id)
		default:
			return domain.ErrSessionUnavailable(err)
		}
	}
	if stored.HasActiveBonus() {
		return domain.ErrBonusActive(id)
	}

	if err := m.store.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return domain.ErrSessionNotFound(id)
		default:
			return domain.ErrSessionUnavailable(err)
		}
	}
	return nil
}

// CleanupExpired removes idle sessions and returns the count removed.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-m.ttl)
	removed, err := m.store.CleanupExpired(ctx, cutoff)
	if err != nil {
		return 0, domain.ErrSessionUnavailable(err)
	}
	if removed > 0 {
		m.logger.Info("expired sessions removed", "count", removed)
	}
	return removed, nil
}

// seal returns a copy with encrypted private state for the store.
func (m *Manager) seal(s *domain.Session) (*domain.Session, error) {
	sealed, err := m.cipher.Seal(s.PrivateState)
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("seal private state for session %s", s.ID), err)
	}
	out := *s
	out.PrivateState = sealed
	return &out, nil
}

// open returns a copy with decrypted private state for callers.
func (m *Manager) open(stored *domain.Session) (*domain.Session, error) {
	plain, err := m.cipher.Open(stored.PrivateState)
	if err != nil {
		return nil, domain.ErrInternal(fmt.Sprintf("open private state for session %s", stored.ID), err)
	}
	out := *stored
	out.PrivateState = plain
	return &out, nil
}
