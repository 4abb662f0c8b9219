package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/domain"
)

type txKind string

const (
	txDebit    txKind = "debit"
	txCredit   txKind = "credit"
	txRollback txKind = "rollback"
)

// MemoryTransaction is one recorded wallet operation.
type MemoryTransaction struct {
	ID         string
	Kind       string
	PlayerID   string
	Amount     decimal.Decimal
	RoundID    string
	RolledBack bool
}

// MemoryWallet is an in-process Client with full per-transaction-id
// idempotency. Used by tests and local development; failure injection
// fields let tests exercise every saga branch.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	currency map[string]string
	txs      map[string]*MemoryTransaction
	results  map[string]domain.WalletResponse

	// Failure injection. When set, the corresponding operation fails
	// with this error before any state change.
	FailDebit    error
	FailCredit   error
	FailRollback error
}

// NewMemoryWallet creates an empty in-memory wallet.
func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{
		balances: make(map[string]decimal.Decimal),
		currency: make(map[string]string),
		txs:      make(map[string]*MemoryTransaction),
		results:  make(map[string]domain.WalletResponse),
	}
}

// SetBalance seeds a player account.
func (w *MemoryWallet) SetBalance(playerID, currency string, balance decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[playerID] = balance
	w.currency[playerID] = currency
}

// Transaction returns a recorded transaction by id, or nil.
func (w *MemoryWallet) Transaction(txID string) *MemoryTransaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx, ok := w.txs[txID]
	if !ok {
		return nil
	}
	out := *tx
	return &out
}

// TransactionCount returns how many operations have been recorded.
func (w *MemoryWallet) TransactionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.txs)
}

// Debit implements Client.
func (w *MemoryWallet) Debit(_ context.Context, params DebitParams) (*domain.WalletResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prior, ok := w.results[params.TransactionID]; ok {
		out := prior
		return &out, nil
	}
	if w.FailDebit != nil {
		return nil, w.FailDebit
	}

	balance, ok := w.balances[params.PlayerID]
	if !ok {
		return nil, domain.ErrWalletUnreachable(fmt.Errorf("unknown player %s", params.PlayerID))
	}
	if balance.LessThan(params.Amount) {
		return nil, domain.ErrInsufficientFunds()
	}

	w.balances[params.PlayerID] = balance.Sub(params.Amount)
	return w.record(txDebit, params.TransactionID, params.PlayerID, params.Amount, params.RoundID), nil
}

// Credit implements Client.
func (w *MemoryWallet) Credit(_ context.Context, params CreditParams) (*domain.WalletResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prior, ok := w.results[params.TransactionID]; ok {
		out := prior
		return &out, nil
	}
	if w.FailCredit != nil {
		return nil, w.FailCredit
	}

	balance, ok := w.balances[params.PlayerID]
	if !ok {
		return nil, domain.ErrWalletUnreachable(fmt.Errorf("unknown player %s", params.PlayerID))
	}

	w.balances[params.PlayerID] = balance.Add(params.Amount)
	return w.record(txCredit, params.TransactionID, params.PlayerID, params.Amount, params.RoundID), nil
}

// Rollback implements Client.
func (w *MemoryWallet) Rollback(_ context.Context, playerID, transactionID string) (*domain.WalletResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	target, ok := w.txs[transactionID]
	if !ok {
		return nil, domain.ErrWalletUnreachable(fmt.Errorf("unknown transaction %s", transactionID))
	}
	if target.RolledBack {
		prior := w.results["rollback:"+transactionID]
		out := prior
		return &out, nil
	}
	if w.FailRollback != nil {
		return nil, w.FailRollback
	}

	target.RolledBack = true
	w.balances[playerID] = w.balances[playerID].Add(target.Amount)

	resp := domain.WalletResponse{
		TransactionID: "rollback:" + transactionID,
		Balance:       w.balances[playerID],
		Currency:      w.currency[playerID],
	}
	w.results["rollback:"+transactionID] = resp
	w.txs["rollback:"+transactionID] = &MemoryTransaction{
		ID:       "rollback:" + transactionID,
		Kind:     string(txRollback),
		PlayerID: playerID,
		Amount:   target.Amount,
	}
	out := resp
	return &out, nil
}

// Balance implements Client.
func (w *MemoryWallet) Balance(_ context.Context, playerID, currency string) (*domain.WalletResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance, ok := w.balances[playerID]
	if !ok {
		return nil, domain.ErrWalletUnreachable(fmt.Errorf("unknown player %s", playerID))
	}
	return &domain.WalletResponse{Balance: balance, Currency: currency}, nil
}

// record stores the transaction and its idempotent result. Caller
// holds the lock.
func (w *MemoryWallet) record(kind txKind, txID, playerID string, amount decimal.Decimal, roundID string) *domain.WalletResponse {
	w.txs[txID] = &MemoryTransaction{
		ID:       txID,
		Kind:     string(kind),
		PlayerID: playerID,
		Amount:   amount,
		RoundID:  roundID,
	}
	resp := domain.WalletResponse{
		TransactionID: txID,
		Balance:       w.balances[playerID],
		Currency:      w.currency[playerID],
	}
	w.results[txID] = resp
	out := resp
	return &out
}
