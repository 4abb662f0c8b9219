// Package wallet defines the operator wallet contract the orchestrator
// is written against, plus the HTTP client for real operator ledgers
// and an in-memory wallet for tests and local development.
//
// Idempotency per transaction id is a hard precondition: the backend
// must treat a repeated call with the same transaction id as a no-op
// returning the original result. The saga's safety depends on it.
package wallet

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/domain"
)

// DebitParams holds the input for Debit.
type DebitParams struct {
	PlayerID      string
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	RoundID       string
}

// CreditParams holds the input for Credit.
type CreditParams struct {
	PlayerID      string
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	RoundID       string
}

// Client is the wallet capability the orchestrator consumes. Every
// monetary operation is keyed by an explicit transaction id supplied
// by the caller.
type Client interface {
	Debit(ctx context.Context, params DebitParams) (*domain.WalletResponse, error)
	Credit(ctx context.Context, params CreditParams) (*domain.WalletResponse, error)
	// Rollback compensates a previous debit identified by its
	// transaction id. Rolling back an already-rolled-back transaction
	// is a no-op returning the original rollback result.
	Rollback(ctx context.Context, playerID, transactionID string) (*domain.WalletResponse, error)
	Balance(ctx context.Context, playerID, currency string) (*domain.WalletResponse, error)
}
