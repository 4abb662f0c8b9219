package round

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/audit"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/engine"
	"github.com/stakehouse/rgs/internal/guard"
	"github.com/stakehouse/rgs/internal/infra"
	"github.com/stakehouse/rgs/internal/session"
	"github.com/stakehouse/rgs/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
)

// scriptedEngine returns a fixed result, or an error, and can block
// until released for concurrency tests.
type scriptedEngine struct {
	result *domain.CommandProcessingResult
	err    error
	block  chan struct{}
	onCall func()

	mu    sync.Mutex
	calls int
}

func (e *scriptedEngine) ProcessCommand(ctx context.Context, public, private json.RawMessage, cmd domain.GameActionCommand) (*domain.CommandProcessingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.onCall != nil {
		e.onCall()
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, domain.ErrEngineFaulted("test-game", ctx.Err())
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	r := *e.result
	return &r, nil
}

func (e *scriptedEngine) Info() domain.EngineInfo {
	return domain.EngineInfo{Name: "test-game", Version: "test"}
}

func (e *scriptedEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fixture struct {
	orch       *Orchestrator
	wallet     *wallet.MemoryWallet
	store      *session.MemoryStore
	sessions   *session.Manager
	recorder   *audit.MemoryRecorder
	reconciler *MemoryReconciler
	eng        *scriptedEngine
}

func winResult(win string) *domain.CommandProcessingResult {
	return &domain.CommandProcessingResult{
		PublicState:  json.RawMessage(`{"reels":[1,2,3]}`),
		PrivateState: json.RawMessage(`{"rng_state":"abc"}`),
		Outcome:      json.RawMessage(`{"symbols":[1,2,3]}`),
		Win:          decimal.RequireFromString(win),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cipher, err := infra.NewStateCipher(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewManager(store, cipher, 30*time.Minute, logger)

	eng := &scriptedEngine{result: winResult("0")}
	registry := engine.NewRegistry()
	registry.Register("test-game", eng)

	w := wallet.NewMemoryWallet()
	w.SetBalance("player-1", "EUR", decimal.RequireFromString("100.00"))

	f := &fixture{
		wallet:     w,
		store:      store,
		sessions:   sessions,
		recorder:   audit.NewMemoryRecorder(),
		reconciler: NewMemoryReconciler(),
		eng:        eng,
	}
	f.orch = NewOrchestrator(
		sessions,
		registry,
		w,
		f.recorder,
		guard.NewSessionLocks(100*time.Millisecond),
		guard.NewCircuitBreaker(5, time.Minute),
		f.reconciler,
		Config{EngineTimeout: time.Second, RollbackAttempts: 3, RollbackBackoff: time.Millisecond},
		logger,
	)
	return f
}

func (f *fixture) startSession(t *testing.T) *domain.Session {
	t.Helper()
	res, err := f.orch.StartSession(context.Background(), StartSessionParams{
		PlayerID:   "player-1",
		OperatorID: "op-1",
		GameCode:   "test-game",
		Currency:   "EUR",
	})
	require.NoError(t, err)
	return res.Session
}

func TestStartSessionUnknownGame(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.StartSession(context.Background(), StartSessionParams{
		PlayerID: "player-1",
		GameCode: "no-such-game",
		Currency: "EUR",
	})
	assert.True(t, domain.HasCode(err, domain.CodeUnknownGame))
}

func TestStartSessionReturnsBalance(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.StartSession(context.Background(), StartSessionParams{
		PlayerID:   "player-1",
		OperatorID: "op-1",
		GameCode:   "test-game",
		Currency:   "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, "100", res.Balance.String())
	assert.NotEmpty(t, res.Session.ID)
}

func TestExecuteRoundHappyPath(t *testing.T) {
	f := newFixture(t)
	f.eng.result = winResult("5.00")
	s := f.startSession(t)

	result, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	require.NoError(t, err)

	assert.True(t, result.Success)
	// 100.00 - 1.00 + 5.00
	assert.Equal(t, "104", result.Balance.String())
	assert.Equal(t, "5", result.Win.String())

	// Exactly one debit and one credit hit the wallet.
	assert.Equal(t, 2, f.wallet.TransactionCount())

	// Session state advanced and is readable by the next round.
	updated, err := f.sessions.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.JSONEq(t, `{"reels":[1,2,3]}`, string(updated.PublicState))
	assert.JSONEq(t, `{"rng_state":"abc"}`, string(updated.PrivateState))

	// The audit record is present and verifies.
	rounds, err := f.recorder.GetSessionRounds(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	ok, err := audit.VerifyRound(context.Background(), f.recorder, rounds[0].RoundID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", rounds[0].Bet.String())
	assert.NotEmpty(t, rounds[0].DebitTxID)
	assert.NotEmpty(t, rounds[0].CreditTxID)
}

func TestExecuteRoundZeroWinSkipsCredit(t *testing.T) {
	f := newFixture(t)
	f.eng.result = winResult("0")
	s := f.startSession(t)

	result, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("2.50"), 10))
	require.NoError(t, err)

	assert.Equal(t, "97.5", result.Balance.String())
	assert.Equal(t, 1, f.wallet.TransactionCount())

	rounds, _ := f.recorder.GetSessionRounds(context.Background(), s.ID)
	require.Len(t, rounds, 1)
	assert.Empty(t, rounds[0].CreditTxID)
}

func TestExecuteRoundInsufficientFundsAbortsCleanly(t *testing.T) {
	f := newFixture(t)
	s := f.startSession(t)

	_, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("500.00"), 10))
	assert.True(t, domain.HasCode(err, domain.CodeInsufficientFunds))

	// No engine call, no session mutation, no audit record.
	assert.Equal(t, 0, f.eng.callCount())
	assert.Equal(t, 0, f.wallet.TransactionCount())
	assert.Equal(t, 0, f.recorder.Count())

	unchanged, err := f.sessions.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unchanged.Version)
}

func TestExecuteRoundEngineFailureRefundsDebit(t *testing.T) {
	f := newFixture(t)
	s := f.startSession(t)
	f.eng.err = domain.ErrEngineFaulted("test-game", errors.New("trap in module"))

	result, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("10.00"), 10))
	assert.True(t, domain.HasCode(err, domain.CodeEngineFailed))

	// The refund restored the balance exactly.
	require.NotNil(t, result)
	assert.Equal(t, "100", result.Balance.String())

	// The rollback referenced the debit's own transaction id.
	roundUUID := uuid.MustParse(result.RoundID)
	tx := f.wallet.Transaction(DeriveTransactionID(roundUUID, LegDebit))
	require.NotNil(t, tx)
	assert.True(t, tx.RolledBack)

	// Nothing persisted.
	unchanged, _ := f.sessions.Get(context.Background(), s.ID)
	assert.Equal(t, int64(1), unchanged.Version)
	assert.Equal(t, 0, f.recorder.Count())
}

func TestExecuteRoundRollbackExhaustionGoesToReconciliation(t *testing.T) {
	f := newFixture(t)
	s := f.startSession(t)
	f.eng.err = domain.ErrEngineFaulted("test-game", errors.New("trap"))
	f.wallet.FailRollback = domain.ErrWalletUnreachable(errors.New("down"))

	_, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("10.00"), 10))
	assert.True(t, domain.HasCode(err, domain.CodeUnreconciled))

	events := f.reconciler.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ReconcileRollbackFailed, events[0].Kind)
	assert.NotEmpty(t, events[0].DebitTxID)
	assert.Equal(t, s.ID, events[0].SessionID)
}

func TestExecuteRoundCreditFailureKeepsOutcome(t *testing.T) {
	f := newFixture(t)
	f.eng.result = winResult("8.00")
	s := f.startSession(t)
	f.wallet.FailCredit = domain.ErrWalletTimeout(errors.New("timeout"))

	result, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	assert.True(t, domain.HasCode(err, domain.CodeCreditPending))

	// The debit stands, the outcome stands, the session advanced.
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "8", result.Win.String())
	assert.Equal(t, "99", result.Balance.String())

	updated, _ := f.sessions.Get(context.Background(), s.ID)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 1, f.recorder.Count())

	events := f.reconciler.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ReconcileCreditPending, events[0].Kind)

	// The repair process can retry with the recorded credit id and the
	// wallet will not double-pay.
	roundUUID := uuid.MustParse(result.RoundID)
	creditID := DeriveTransactionID(roundUUID, LegCredit)
	assert.Equal(t, creditID, events[0].CreditTxID)
}

func TestExecuteRoundCreditAndPersistBothFailSurfaceStateGap(t *testing.T) {
	f := newFixture(t)
	f.eng.result = winResult("3.00")
	s := f.startSession(t)
	f.wallet.FailCredit = domain.ErrWalletTimeout(errors.New("timeout"))

	// A concurrent writer bumps the stored version mid-round, so the
	// session update after the failed credit hits a conflict.
	f.eng.onCall = func() {
		raw, err := f.store.Get(context.Background(), s.ID)
		require.NoError(t, err)
		raw.Version++
		require.NoError(t, f.store.Update(context.Background(), raw))
	}

	result, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	assert.True(t, domain.HasCode(err, domain.CodeCreditPending))
	require.NotNil(t, result)
	assert.False(t, result.Success)

	// The pending-credit event also names the lost session update.
	events := f.reconciler.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ReconcileCreditPending, events[0].Kind)
	assert.Contains(t, events[0].Reason, "session update failed")
}

func TestExecuteRoundAuditFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.eng.result = winResult("3.00")
	s := f.startSession(t)
	f.recorder.FailAll = errors.New("audit store down")

	result, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "102", result.Balance.String())

	events := f.reconciler.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ReconcileAuditGap, events[0].Kind)
}

func TestExecuteRoundConcurrentSameSession(t *testing.T) {
	f := newFixture(t)
	f.eng.result = winResult("0")
	f.eng.block = make(chan struct{})
	s := f.startSession(t)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
		done <- err
	}()
	<-started
	// Wait until the first round holds the lock and is inside the
	// engine call.
	require.Eventually(t, func() bool { return f.eng.callCount() == 1 }, time.Second, time.Millisecond)

	_, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	assert.True(t, domain.HasCode(err, domain.CodeSessionBusy))

	// The rejected round produced no side effects.
	assert.Equal(t, 1, f.eng.callCount())
	assert.Equal(t, 1, f.wallet.TransactionCount())

	close(f.eng.block)
	require.NoError(t, <-done)
	assert.Equal(t, "99", mustBalance(t, f, "player-1").String())
}

func TestExecuteRoundBonusLifecycle(t *testing.T) {
	f := newFixture(t)
	s := f.startSession(t)

	// A spin triggers a 2-step bonus.
	trigger := winResult("0")
	trigger.TriggeredBonus = &domain.BonusTrigger{FeatureID: "free-spins", Steps: 2}
	f.eng.result = trigger

	result, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	require.NoError(t, err)
	require.NotNil(t, result.TriggeredBonus)

	withBonus, _ := f.sessions.Get(context.Background(), s.ID)
	require.True(t, withBonus.HasActiveBonus())
	assert.Equal(t, 2, withBonus.Bonus.StepsRemaining)

	// Bonus steps cost nothing and accumulate wins.
	f.eng.result = winResult("4.00")
	before := mustBalance(t, f, "player-1")

	_, err = f.orch.ExecuteRound(context.Background(), s.ID, domain.NewBonusActionCommand(nil))
	require.NoError(t, err)

	mid, _ := f.sessions.Get(context.Background(), s.ID)
	require.True(t, mid.HasActiveBonus())
	assert.Equal(t, 1, mid.Bonus.StepsRemaining)
	assert.Equal(t, "4", mid.Bonus.AccumulatedWin.String())
	assert.Equal(t, before.Add(decimal.RequireFromString("4.00")).String(), mustBalance(t, f, "player-1").String())

	// Last step clears the bonus.
	_, err = f.orch.ExecuteRound(context.Background(), s.ID, domain.NewBonusActionCommand(nil))
	require.NoError(t, err)

	after, _ := f.sessions.Get(context.Background(), s.ID)
	assert.False(t, after.HasActiveBonus())
}

func TestExecuteRoundBonusActionWithoutBonus(t *testing.T) {
	f := newFixture(t)
	s := f.startSession(t)

	_, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewBonusActionCommand(nil))
	assert.True(t, domain.HasCode(err, domain.CodeValidation))
	assert.Equal(t, 0, f.wallet.TransactionCount())
}

func TestExecuteRoundUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.ExecuteRound(context.Background(), "missing", domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	assert.True(t, domain.HasCode(err, domain.CodeSessionNotFound))
}

func TestEndSessionBlockedDuringBonus(t *testing.T) {
	f := newFixture(t)
	s := f.startSession(t)

	trigger := winResult("0")
	trigger.TriggeredBonus = &domain.BonusTrigger{FeatureID: "free-spins", Steps: 3}
	f.eng.result = trigger
	_, err := f.orch.ExecuteRound(context.Background(), s.ID, domain.NewSpinCommand(decimal.RequireFromString("1.00"), 10))
	require.NoError(t, err)

	err = f.orch.EndSession(context.Background(), s.ID)
	assert.True(t, domain.HasCode(err, domain.CodeBonusActive))
}

func TestDeriveTransactionIDDeterministic(t *testing.T) {
	roundID := uuid.New()

	assert.Equal(t, DeriveTransactionID(roundID, LegDebit), DeriveTransactionID(roundID, LegDebit))
	assert.NotEqual(t, DeriveTransactionID(roundID, LegDebit), DeriveTransactionID(roundID, LegCredit))
	assert.NotEqual(t, DeriveTransactionID(roundID, LegDebit), DeriveTransactionID(uuid.New(), LegDebit))
}

func mustBalance(t *testing.T, f *fixture, playerID string) decimal.Decimal {
	t.Helper()
	resp, err := f.wallet.Balance(context.Background(), playerID, "EUR")
	require.NoError(t, err)
	return resp.Balance
}
