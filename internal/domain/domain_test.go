package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCurrency(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		wantErr  bool
	}{
		{"valid EUR", "EUR", false},
		{"valid USD", "USD", false},
		{"lowercase", "eur", true},
		{"mixed case", "Eur", true},
		{"too short", "EU", true},
		{"too long", "EURO", true},
		{"empty", "", true},
		{"numbers", "123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrency(tt.currency)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid currency code")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateGameCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"simple", "book-of-gold", false},
		{"with digits", "slots88", false},
		{"underscore", "lucky_7", false},
		{"uppercase", "BookOfGold", true},
		{"single char", "x", true},
		{"empty", "", true},
		{"spaces", "book of gold", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGameCode(tt.code)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateBetAmount(t *testing.T) {
	tests := []struct {
		name    string
		bet     string
		wantErr bool
	}{
		{"whole", "1", false},
		{"two decimals", "0.25", false},
		{"zero", "0", false},
		{"negative", "-1.00", true},
		{"three decimals", "0.125", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBetAmount(decimal.RequireFromString(tt.bet))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		cmd     GameActionCommand
		wantErr string
	}{
		{"valid spin", NewSpinCommand(decimal.NewFromInt(1), 10), ""},
		{"spin with zero bet", NewSpinCommand(decimal.Zero, 10), "positive bet"},
		{"spin negative lines", GameActionCommand{Type: CommandSpin, Bet: decimal.NewFromInt(1), Lines: -1}, "line count"},
		{"valid bonus action", NewBonusActionCommand(nil), ""},
		{"bonus action with bet", GameActionCommand{Type: CommandBonusAction, Bet: decimal.NewFromInt(1)}, "must not carry a bet"},
		{"unknown type", GameActionCommand{Type: "deal"}, "unknown command type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.cmd)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrWalletUnreachable(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "WALLET_UNREACHABLE")
	assert.True(t, HasCode(err, CodeWalletUnreachable))
	assert.False(t, HasCode(err, CodeWalletTimeout))
	assert.False(t, HasCode(cause, CodeWalletUnreachable))
}

func TestErrUnreconciledCarriesIDs(t *testing.T) {
	err := ErrUnreconciled("round-1", "tx-debit-1", fmt.Errorf("rollback declined"))
	assert.Contains(t, err.Message, "round-1")
	assert.Contains(t, err.Message, "tx-debit-1")
}

func TestSessionHasActiveBonus(t *testing.T) {
	s := &Session{ID: "s1"}
	assert.False(t, s.HasActiveBonus())

	s.Bonus = &BonusSession{FeatureID: "freespins", StepsRemaining: 3}
	assert.True(t, s.HasActiveBonus())

	s.Bonus.StepsRemaining = 0
	assert.False(t, s.HasActiveBonus())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ID: "s1", LastActivity: now.Add(-2 * time.Hour)}

	assert.True(t, s.Expired(now, time.Hour))
	assert.False(t, s.Expired(now, 3*time.Hour))

	s.Touch(now)
	assert.False(t, s.Expired(now, time.Hour))
}
