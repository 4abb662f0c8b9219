package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *MemoryStore) {
	t.Helper()
	cipher, err := infra.NewStateCipher(make([]byte, 32))
	require.NoError(t, err)
	store := NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(store, cipher, ttl, logger), store
}

func createTestSession(t *testing.T, m *Manager) *domain.Session {
	t.Helper()
	s, err := m.Create(context.Background(), CreateParams{
		PlayerID:     "player-1",
		OperatorID:   "op-1",
		GameCode:     "book-of-gold",
		Currency:     "EUR",
		PublicState:  json.RawMessage(`{"reels":[[1,2,3]]}`),
		PrivateState: json.RawMessage(`{"rng_state":"abc"}`),
	})
	require.NoError(t, err)
	return s
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := createTestSession(t, m)

	got, err := m.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "player-1", got.PlayerID)
	assert.JSONEq(t, `{"reels":[[1,2,3]]}`, string(got.PublicState))
	assert.JSONEq(t, `{"rng_state":"abc"}`, string(got.PrivateState))
	assert.Equal(t, int64(1), got.Version)
}

func TestPrivateStateEncryptedAtRest(t *testing.T) {
	m, store := newTestManager(t, time.Hour)
	s := createTestSession(t, m)

	raw, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, string(s.PrivateState), string(raw.PrivateState))
	assert.NotContains(t, string(raw.PrivateState), "rng_state")
	// Public state stays readable.
	assert.JSONEq(t, `{"reels":[[1,2,3]]}`, string(raw.PublicState))
}

func TestCreateRejectsBadInput(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	_, err := m.Create(context.Background(), CreateParams{Currency: "euro", GameCode: "ok-game"})
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeValidation))

	_, err = m.Create(context.Background(), CreateParams{Currency: "EUR", GameCode: "Bad Game"})
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeValidation))
}

func TestUpdateBumpsVersionAndActivity(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := createTestSession(t, m)
	before := s.LastActivity

	s.PublicState = json.RawMessage(`{"reels":[[4,5,6]]}`)
	require.NoError(t, m.Update(context.Background(), s))
	assert.Equal(t, int64(2), s.Version)
	assert.False(t, s.LastActivity.Before(before))

	got, err := m.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reels":[[4,5,6]]}`, string(got.PublicState))
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateConflictOnStaleVersion(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := createTestSession(t, m)

	stale := *s
	require.NoError(t, m.Update(context.Background(), s))

	err := m.Update(context.Background(), &stale)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeSessionConflict))
}

func TestGetUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	_, err := m.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeSessionNotFound))
}

func TestDeleteProtectsActiveBonus(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := createTestSession(t, m)

	s.Bonus = &domain.BonusSession{
		FeatureID:      "freespins",
		StepsRemaining: 5,
		AccumulatedWin: decimal.Zero,
		TriggeredAt:    time.Now(),
	}
	require.NoError(t, m.Update(context.Background(), s))

	err := m.Delete(context.Background(), s.ID)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeBonusActive))

	s.Bonus = nil
	require.NoError(t, m.Update(context.Background(), s))
	require.NoError(t, m.Delete(context.Background(), s.ID))

	_, err = m.Get(context.Background(), s.ID)
	assert.True(t, domain.HasCode(err, domain.CodeSessionNotFound))
}

func TestGetHidesIdleSessionBeforeSweep(t *testing.T) {
	m, store := newTestManager(t, time.Minute)
	idle := createTestSession(t, m)
	bonus := createTestSession(t, m)

	age := func(id string, withBonus bool) {
		raw, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		raw.LastActivity = time.Now().Add(-time.Hour)
		raw.Version++
		if withBonus {
			raw.Bonus = &domain.BonusSession{FeatureID: "freespins", StepsRemaining: 1}
		}
		require.NoError(t, store.Update(context.Background(), raw))
	}
	age(idle.ID, false)
	age(bonus.ID, true)

	// The store still holds the idle session, but reads already miss it.
	_, err := store.Get(context.Background(), idle.ID)
	require.NoError(t, err)
	_, err = m.Get(context.Background(), idle.ID)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeSessionNotFound))

	// An unresolved bonus keeps the session readable past the TTL.
	got, err := m.Get(context.Background(), bonus.ID)
	require.NoError(t, err)
	assert.True(t, got.HasActiveBonus())
}

func TestCleanupExpired(t *testing.T) {
	m, store := newTestManager(t, time.Minute)
	old := createTestSession(t, m)
	fresh := createTestSession(t, m)
	bonus := createTestSession(t, m)

	// Age two sessions past the TTL directly in the store.
	age := func(id string, withBonus bool) {
		raw, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		raw.LastActivity = time.Now().Add(-time.Hour)
		raw.Version++
		if withBonus {
			raw.Bonus = &domain.BonusSession{FeatureID: "freespins", StepsRemaining: 1}
		}
		require.NoError(t, store.Update(context.Background(), raw))
	}
	age(old.ID, false)
	age(bonus.ID, true)

	removed, err := m.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = m.Get(context.Background(), old.ID)
	assert.True(t, domain.HasCode(err, domain.CodeSessionNotFound))

	// Fresh and bonus-holding sessions survive.
	_, err = m.Get(context.Background(), fresh.ID)
	assert.NoError(t, err)
	_, err = store.Get(context.Background(), bonus.ID)
	assert.NoError(t, err)
}
