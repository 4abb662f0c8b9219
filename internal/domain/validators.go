package domain

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	gameCodeRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)
)

// ValidateCurrency checks if a currency code is ISO 4217.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("invalid currency code: %s", currency)
	}
	return nil
}

// ValidateGameCode checks the game code format used by the registry.
func ValidateGameCode(code string) error {
	if !gameCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid game code: %q", code)
	}
	return nil
}

// ValidateBetAmount checks that a bet is non-negative with at most two
// decimal places. Zero is legal: pure bonus continuation steps place no
// new wager.
func ValidateBetAmount(bet decimal.Decimal) error {
	if bet.IsNegative() {
		return fmt.Errorf("bet must not be negative, got %s", bet)
	}
	if bet.Exponent() < -2 {
		return fmt.Errorf("bet has more than two decimal places: %s", bet)
	}
	return nil
}

// ValidateCommand checks a GameActionCommand before it reaches an engine.
func ValidateCommand(cmd GameActionCommand) error {
	switch cmd.Type {
	case CommandSpin:
		if cmd.Bet.IsZero() {
			return fmt.Errorf("spin requires a positive bet")
		}
		if cmd.Lines < 0 {
			return fmt.Errorf("line count must not be negative, got %d", cmd.Lines)
		}
	case CommandBonusAction:
		if !cmd.Bet.IsZero() {
			return fmt.Errorf("bonus action must not carry a bet")
		}
	default:
		return fmt.Errorf("unknown command type: %q", cmd.Type)
	}
	return ValidateBetAmount(cmd.Bet)
}
