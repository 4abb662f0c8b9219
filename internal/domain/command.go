package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CommandType enumerates the engine command variants.
type CommandType string

const (
	CommandSpin        CommandType = "spin"
	CommandBonusAction CommandType = "bonus_action"
)

// GameActionCommand is the request the orchestrator hands to an engine
// adapter. Immutable once constructed: pass by value, never mutate.
type GameActionCommand struct {
	Type    CommandType     `json:"type"`
	Bet     decimal.Decimal `json:"bet"`
	Lines   int             `json:"lines,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewSpinCommand builds a spin command for the given bet and line count.
func NewSpinCommand(bet decimal.Decimal, lines int) GameActionCommand {
	return GameActionCommand{Type: CommandSpin, Bet: bet, Lines: lines}
}

// NewBonusActionCommand builds a bonus continuation command carrying a
// feature-specific payload. Bonus steps wager nothing new, so Bet is zero.
func NewBonusActionCommand(payload json.RawMessage) GameActionCommand {
	return GameActionCommand{Type: CommandBonusAction, Bet: decimal.Zero, Payload: payload}
}

// BonusTrigger describes a bonus feature the engine just triggered.
type BonusTrigger struct {
	FeatureID string `json:"feature_id"`
	Steps     int    `json:"steps"`
}

// CommandProcessingResult is the engine's response to one command.
// The orchestrator treats the state and outcome fields as opaque; only
// Win participates in wallet settlement.
type CommandProcessingResult struct {
	PublicState    json.RawMessage `json:"public_state"`
	PrivateState   json.RawMessage `json:"private_state"`
	Outcome        json.RawMessage `json:"outcome"`
	Win            decimal.Decimal `json:"win"`
	TriggeredBonus *BonusTrigger   `json:"triggered_bonus,omitempty"`
	BonusComplete  bool            `json:"bonus_complete,omitempty"`
}

// EngineInfo describes an engine for audit and compatibility checks.
type EngineInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
