package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WalletResponse is returned by every wallet operation. TransactionID
// is the idempotency key for that specific debit/credit attempt; the
// wallet must return the original result on a repeated call with the
// same id.
type WalletResponse struct {
	TransactionID string          `json:"transaction_id"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
}

// GameRoundRecord is the immutable audit record of one round. Written
// exactly once per completed or explicitly-failed round, never mutated.
// Each monetary leg references its own wallet transaction id for
// reconciliation.
type GameRoundRecord struct {
	RoundID           string            `json:"round_id"`
	SessionID         string            `json:"session_id"`
	PlayerID          string            `json:"player_id"`
	GameCode          string            `json:"game_code"`
	Timestamp         time.Time         `json:"timestamp"`
	Bet               decimal.Decimal   `json:"bet"`
	Win               decimal.Decimal   `json:"win"`
	Currency          string            `json:"currency"`
	Command           GameActionCommand `json:"command"`
	DebitTxID         string            `json:"debit_tx_id,omitempty"`
	CreditTxID        string            `json:"credit_tx_id,omitempty"`
	OutcomeHash       string            `json:"outcome_hash"`
	Outcome           json.RawMessage   `json:"outcome"`
	PublicStateBefore json.RawMessage   `json:"public_state_before"`
	PublicStateAfter  json.RawMessage   `json:"public_state_after"`
}

// RoundResult is the orchestrator's answer to the API layer. On partial
// failure Balance still carries the best-known value so the client can
// reconcile its own view without re-issuing the wager.
type RoundResult struct {
	RoundID        string          `json:"round_id"`
	Success        bool            `json:"success"`
	Outcome        json.RawMessage `json:"outcome,omitempty"`
	PublicState    json.RawMessage `json:"public_state,omitempty"`
	Win            decimal.Decimal `json:"win"`
	Balance        decimal.Decimal `json:"balance"`
	TriggeredBonus *BonusTrigger   `json:"triggered_bonus,omitempty"`
}
