// Package round coordinates the multi-party round saga: wallet debit,
// engine execution, wallet credit or rollback, session persistence,
// and audit recording. There is no two-phase commit across those
// services; ordering and idempotent transaction ids are what keep
// money and outcomes consistent.
package round

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/audit"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/engine"
	"github.com/stakehouse/rgs/internal/guard"
	"github.com/stakehouse/rgs/internal/session"
	"github.com/stakehouse/rgs/internal/wallet"
)

// walletCircuitKey keys the breaker in front of the wallet.
const walletCircuitKey = "wallet"

// Config holds the orchestrator's tunables. Timeouts live here, not in
// the saga logic: a timed-out call is handled exactly like an explicit
// failure response.
type Config struct {
	EngineTimeout    time.Duration
	RollbackAttempts int
	RollbackBackoff  time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		EngineTimeout:    10 * time.Second,
		RollbackAttempts: 3,
		RollbackBackoff:  200 * time.Millisecond,
	}
}

// Orchestrator drives the round saga. One instance serves all sessions;
// per-session serialization comes from the lock arena.
type Orchestrator struct {
	sessions   *session.Manager
	registry   *engine.Registry
	wallet     wallet.Client
	recorder   audit.Recorder
	locks      *guard.SessionLocks
	breaker    *guard.CircuitBreaker
	reconciler Reconciler
	cfg        Config
	logger     *slog.Logger
}

// NewOrchestrator wires the saga coordinator.
func NewOrchestrator(
	sessions *session.Manager,
	registry *engine.Registry,
	walletClient wallet.Client,
	recorder audit.Recorder,
	locks *guard.SessionLocks,
	breaker *guard.CircuitBreaker,
	reconciler Reconciler,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.RollbackAttempts <= 0 {
		cfg.RollbackAttempts = 1
	}
	return &Orchestrator{
		sessions:   sessions,
		registry:   registry,
		wallet:     walletClient,
		recorder:   recorder,
		locks:      locks,
		breaker:    breaker,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
	}
}

// StartSessionParams holds the input for StartSession.
type StartSessionParams struct {
	PlayerID   string
	OperatorID string
	GameCode   string
	Currency   string
}

// StartSessionResult is returned to the API layer on session start.
type StartSessionResult struct {
	Session *domain.Session
	Balance decimal.Decimal
}

// StartSession creates a session for a player after checking the game
// exists and the wallet knows the player.
func (o *Orchestrator) StartSession(ctx context.Context, params StartSessionParams) (*StartSessionResult, error) {
	if _, err := o.registry.Resolve(params.GameCode); err != nil {
		return nil, err
	}

	balance, err := o.wallet.Balance(ctx, params.PlayerID, params.Currency)
	if err != nil {
		return nil, err
	}

	s, err := o.sessions.Create(ctx, session.CreateParams{
		PlayerID:    params.PlayerID,
		OperatorID:  params.OperatorID,
		GameCode:    params.GameCode,
		Currency:    params.Currency,
		PublicState: json.RawMessage(`{}`),
	})
	if err != nil {
		return nil, err
	}

	return &StartSessionResult{Session: s, Balance: balance.Balance}, nil
}

// GetSession loads a session by id.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return o.sessions.Get(ctx, sessionID)
}

// EndSession deletes a session unless a bonus feature is unresolved.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	release, err := o.locks.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()
	return o.sessions.Delete(ctx, sessionID)
}

// ExecuteRound runs one complete round saga for a session. On partial
// failure both return values are set: the result carries the round id
// and best-known balance, the error says what went wrong.
//
// Step order is load-bearing: debit before engine, engine before
// credit, credit before the session write that makes the new state
// visible to the next round.
func (o *Orchestrator) ExecuteRound(ctx context.Context, sessionID string, cmd domain.GameActionCommand) (*domain.RoundResult, error) {
	if err := domain.ValidateCommand(cmd); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	release, err := o.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cmd.Type == domain.CommandBonusAction && !s.HasActiveBonus() {
		return nil, domain.ErrValidation(fmt.Sprintf("session %s has no active bonus", sessionID))
	}

	adapter, err := o.registry.Resolve(s.GameCode)
	if err != nil {
		return nil, err
	}

	// One fresh round id; both transaction ids derive from it so a
	// retried saga reuses the same idempotency keys.
	roundID := uuid.New()
	debitTxID := DeriveTransactionID(roundID, LegDebit)
	creditTxID := DeriveTransactionID(roundID, LegCredit)

	saga := &sagaState{
		roundID:      roundID.String(),
		debitTxID:    debitTxID,
		creditTxID:   creditTxID,
		session:      s,
		adapter:      adapter,
		cmd:          cmd,
		publicBefore: s.PublicState,
	}

	return o.runSaga(ctx, saga)
}

// sagaState carries one execution through its steps.
type sagaState struct {
	roundID    string
	debitTxID  string
	creditTxID string
	session    *domain.Session
	adapter    engine.Adapter
	cmd        domain.GameActionCommand

	publicBefore json.RawMessage

	balance      decimal.Decimal
	balanceKnown bool
	debited      bool
	result       *domain.CommandProcessingResult
}

func (o *Orchestrator) runSaga(ctx context.Context, saga *sagaState) (*domain.RoundResult, error) {
	// Step 1: debit (skipped for zero-bet bonus continuations).
	if err := o.debit(ctx, saga); err != nil {
		return nil, err
	}

	// The wallet has acknowledged the debit; from here the saga runs
	// to a terminal outcome even if the caller goes away.
	if saga.debited {
		ctx = context.WithoutCancel(ctx)
	}

	// Step 2: engine invocation, with rollback on failure.
	if err := o.invokeEngine(ctx, saga); err != nil {
		return o.rollbackDebit(ctx, saga, err)
	}

	// Step 3: credit the win.
	creditErr := o.credit(ctx, saga)

	// Step 4: persist the session's new state.
	persistErr := o.persistSession(ctx, saga)

	// Step 5: audit record. Failure never reverses money or state.
	o.recordRound(ctx, saga)

	result := &domain.RoundResult{
		RoundID:        saga.roundID,
		Success:        creditErr == nil && persistErr == nil,
		Outcome:        saga.result.Outcome,
		PublicState:    saga.result.PublicState,
		Win:            saga.result.Win,
		Balance:        saga.balance,
		TriggeredBonus: saga.result.TriggeredBonus,
	}

	switch {
	case creditErr != nil:
		err := domain.ErrCreditPending(saga.roundID, saga.creditTxID, creditErr)
		detail := err.Error()
		if persistErr != nil {
			o.logger.Error("session update failed alongside pending credit",
				"round_id", saga.roundID,
				"session_id", saga.session.ID,
				"error", persistErr)
			detail += "; session update failed: " + persistErr.Error()
		}
		o.report(ctx, saga, ReconcileCreditPending, detail)
		return result, err
	case persistErr != nil:
		return result, domain.ErrStatePersistenceFailed(saga.roundID, persistErr)
	default:
		o.logger.Info("round completed",
			"round_id", saga.roundID,
			"session_id", saga.session.ID,
			"game_code", saga.session.GameCode,
			"bet", saga.cmd.Bet,
			"win", saga.result.Win)
		return result, nil
	}
}

// debit runs the wallet debit leg. Failure here aborts the round with
// no side effects anywhere: no state mutation, no engine call, no
// audit record.
func (o *Orchestrator) debit(ctx context.Context, saga *sagaState) error {
	if saga.cmd.Bet.IsZero() {
		return nil
	}

	if err := o.breaker.Allow(walletCircuitKey); err != nil {
		return domain.ErrWalletUnreachable(err)
	}

	resp, err := o.wallet.Debit(ctx, wallet.DebitParams{
		PlayerID:      saga.session.PlayerID,
		Amount:        saga.cmd.Bet,
		Currency:      saga.session.Currency,
		TransactionID: saga.debitTxID,
		RoundID:       saga.roundID,
	})
	if err != nil {
		if !domain.HasCode(err, domain.CodeInsufficientFunds) {
			o.breaker.RecordFailure(walletCircuitKey)
		}
		return err
	}

	o.breaker.RecordSuccess(walletCircuitKey)
	saga.debited = true
	saga.balance = resp.Balance
	saga.balanceKnown = true
	return nil
}

// invokeEngine runs the game command against the adapter under the
// configured timeout.
func (o *Orchestrator) invokeEngine(ctx context.Context, saga *sagaState) error {
	engineCtx := ctx
	if o.cfg.EngineTimeout > 0 {
		var cancel context.CancelFunc
		engineCtx, cancel = context.WithTimeout(ctx, o.cfg.EngineTimeout)
		defer cancel()
	}

	result, err := saga.adapter.ProcessCommand(engineCtx, saga.session.PublicState, saga.session.PrivateState, saga.cmd)
	if err != nil {
		return err
	}
	saga.result = result
	return nil
}

// rollbackDebit compensates a debit after an engine failure. Bounded
// retries; if the wallet never accepts the rollback the round is
// escalated as unreconciled, because at that point the ledger and the
// session disagree and only an external process can close the gap.
func (o *Orchestrator) rollbackDebit(ctx context.Context, saga *sagaState, engineErr error) (*domain.RoundResult, error) {
	if !saga.debited {
		return nil, domain.ErrEngineFailed(saga.roundID, engineErr)
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.RollbackAttempts; attempt++ {
		resp, err := o.wallet.Rollback(ctx, saga.session.PlayerID, saga.debitTxID)
		if err == nil {
			saga.balance = resp.Balance
			saga.balanceKnown = true
			o.logger.Warn("round refunded after engine failure",
				"round_id", saga.roundID,
				"session_id", saga.session.ID,
				"debit_tx_id", saga.debitTxID,
				"attempt", attempt,
				"engine_timeout", engine.IsTimeout(engineErr),
				"error", engineErr)
			result := &domain.RoundResult{
				RoundID: saga.roundID,
				Win:     decimal.Zero,
				Balance: saga.balance,
			}
			return result, domain.ErrEngineFailed(saga.roundID, engineErr)
		}
		lastErr = err
		if attempt < o.cfg.RollbackAttempts {
			time.Sleep(o.cfg.RollbackBackoff)
		}
	}

	roundErr := domain.ErrUnreconciled(saga.roundID, saga.debitTxID, lastErr)
	o.report(ctx, saga, ReconcileRollbackFailed, roundErr.Error())
	o.logger.Error("rollback exhausted, round needs reconciliation",
		"round_id", saga.roundID,
		"session_id", saga.session.ID,
		"debit_tx_id", saga.debitTxID,
		"engine_error", engineErr,
		"rollback_error", lastErr)

	result := &domain.RoundResult{
		RoundID: saga.roundID,
		Balance: saga.balance,
	}
	return result, roundErr
}

// credit pays out the win. On failure the debit stands (the wager was
// legitimately consumed) and the engine outcome stands; the round is
// reported credit-pending and the same credit transaction id lets a
// repair process retry without double-paying.
func (o *Orchestrator) credit(ctx context.Context, saga *sagaState) error {
	if saga.result.Win.IsZero() {
		return nil
	}

	resp, err := o.wallet.Credit(ctx, wallet.CreditParams{
		PlayerID:      saga.session.PlayerID,
		Amount:        saga.result.Win,
		Currency:      saga.session.Currency,
		TransactionID: saga.creditTxID,
		RoundID:       saga.roundID,
	})
	if err != nil {
		o.breaker.RecordFailure(walletCircuitKey)
		return err
	}

	o.breaker.RecordSuccess(walletCircuitKey)
	saga.balance = resp.Balance
	saga.balanceKnown = true
	return nil
}

// persistSession writes the engine's state transition and any bonus
// move back through the lifecycle manager.
func (o *Orchestrator) persistSession(ctx context.Context, saga *sagaState) error {
	s := saga.session
	s.PublicState = saga.result.PublicState
	s.PrivateState = saga.result.PrivateState
	o.applyBonusTransition(saga)

	return o.sessions.Update(ctx, s)
}

// applyBonusTransition advances the bonus sub-session: a trigger opens
// one, a bonus step consumes one, completion clears it.
func (o *Orchestrator) applyBonusTransition(saga *sagaState) {
	s := saga.session
	result := saga.result

	if saga.cmd.Type == domain.CommandBonusAction && s.Bonus != nil {
		s.Bonus.StepsRemaining--
		s.Bonus.AccumulatedWin = s.Bonus.AccumulatedWin.Add(result.Win)
		if result.BonusComplete || s.Bonus.StepsRemaining <= 0 {
			s.Bonus = nil
		}
	}

	if result.TriggeredBonus != nil {
		s.Bonus = &domain.BonusSession{
			FeatureID:      result.TriggeredBonus.FeatureID,
			StepsRemaining: result.TriggeredBonus.Steps,
			AccumulatedWin: decimal.Zero,
			TriggeredAt:    time.Now().UTC(),
		}
	}
}

// recordRound writes the audit record. A missing record is a
// compliance gap repaired by replaying wallet and session logs, never
// a reason to re-debit or re-credit, so failures are reported and
// swallowed.
func (o *Orchestrator) recordRound(ctx context.Context, saga *sagaState) {
	hash, err := audit.OutcomeHash(saga.result.Outcome)
	if err != nil {
		o.logger.Error("outcome hash failed", "round_id", saga.roundID, "error", err)
		o.report(ctx, saga, ReconcileAuditGap, fmt.Sprintf("outcome hash: %v", err))
		return
	}

	record := &domain.GameRoundRecord{
		RoundID:           saga.roundID,
		SessionID:         saga.session.ID,
		PlayerID:          saga.session.PlayerID,
		GameCode:          saga.session.GameCode,
		Timestamp:         time.Now().UTC(),
		Bet:               saga.cmd.Bet,
		Win:               saga.result.Win,
		Currency:          saga.session.Currency,
		Command:           saga.cmd,
		OutcomeHash:       hash,
		Outcome:           saga.result.Outcome,
		PublicStateBefore: saga.publicBefore,
		PublicStateAfter:  saga.result.PublicState,
	}
	if saga.debited {
		record.DebitTxID = saga.debitTxID
	}
	if !saga.result.Win.IsZero() {
		record.CreditTxID = saga.creditTxID
	}

	if err := o.recorder.RecordRound(ctx, record); err != nil {
		o.logger.Error("audit write failed", "round_id", saga.roundID, "error", err)
		o.report(ctx, saga, ReconcileAuditGap, err.Error())
	}
}

// report publishes a reconciliation event; failures to publish are
// logged, never propagated into the saga outcome.
func (o *Orchestrator) report(ctx context.Context, saga *sagaState, kind, reason string) {
	event := ReconciliationEvent{
		Kind:       kind,
		RoundID:    saga.roundID,
		SessionID:  saga.session.ID,
		PlayerID:   saga.session.PlayerID,
		GameCode:   saga.session.GameCode,
		Currency:   saga.session.Currency,
		Bet:        saga.cmd.Bet,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	if saga.debited {
		event.DebitTxID = saga.debitTxID
	}
	if saga.result != nil {
		event.Win = saga.result.Win
		if !saga.result.Win.IsZero() {
			event.CreditTxID = saga.creditTxID
		}
	}

	if err := o.reconciler.Report(ctx, event); err != nil {
		o.logger.Error("reconciliation report failed",
			"round_id", saga.roundID,
			"kind", kind,
			"error", err)
	}
}
