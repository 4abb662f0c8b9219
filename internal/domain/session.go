package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Session is the authoritative record of one player's game session.
// PublicState is visible to the client and the engine; PrivateState is
// engine-internal and is encrypted before it ever reaches the store.
// Both are always replaced together in a single Update.
type Session struct {
	ID           string          `json:"id"`
	PlayerID     string          `json:"player_id"`
	OperatorID   string          `json:"operator_id"`
	GameCode     string          `json:"game_code"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`
	Version      int64           `json:"version"`
	PublicState  json.RawMessage `json:"public_state"`
	PrivateState json.RawMessage `json:"-"`
	Bonus        *BonusSession   `json:"bonus,omitempty"`
}

// BonusSession is the continuation context for an unresolved multi-step
// bonus feature. It exists only while the feature is in progress and is
// cleared when the final step resolves.
type BonusSession struct {
	FeatureID      string          `json:"feature_id"`
	StepsRemaining int             `json:"steps_remaining"`
	AccumulatedWin decimal.Decimal `json:"accumulated_win"`
	TriggeredAt    time.Time       `json:"triggered_at"`
}

// HasActiveBonus reports whether a bonus feature is still unresolved.
// A session with an active bonus must not be deleted.
func (s *Session) HasActiveBonus() bool {
	return s.Bonus != nil && s.Bonus.StepsRemaining > 0
}

// Touch refreshes the activity timestamp. Called on every successful
// store update so the TTL sweep sees live sessions as live.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivity) > ttl
}
