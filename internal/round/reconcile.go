package round

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/infra"
)

// Reconciliation event kinds.
const (
	ReconcileRollbackFailed = "rollback_failed"
	ReconcileCreditPending  = "credit_pending"
	ReconcileAuditGap       = "audit_write_failed"
)

// ReconciliationEvent is the durable dead-letter payload for a round
// the orchestrator could not settle cleanly. It carries every id an
// out-of-band repair process needs; remediation policy lives with the
// consumer, not here.
type ReconciliationEvent struct {
	Kind       string          `json:"kind"`
	RoundID    string          `json:"round_id"`
	SessionID  string          `json:"session_id"`
	PlayerID   string          `json:"player_id"`
	GameCode   string          `json:"game_code"`
	Currency   string          `json:"currency"`
	DebitTxID  string          `json:"debit_tx_id,omitempty"`
	CreditTxID string          `json:"credit_tx_id,omitempty"`
	Bet        decimal.Decimal `json:"bet"`
	Win        decimal.Decimal `json:"win"`
	Reason     string          `json:"reason"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Reconciler is the durable alert sink for unreconciled rounds.
type Reconciler interface {
	Report(ctx context.Context, event ReconciliationEvent) error
}

// KafkaReconciler publishes reconciliation events to a Kafka topic,
// keyed by round id so repeated reports for one round land in order.
type KafkaReconciler struct {
	producer *infra.KafkaProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaReconciler creates a reconciler over the given producer.
func NewKafkaReconciler(producer *infra.KafkaProducer, topic string, logger *slog.Logger) *KafkaReconciler {
	return &KafkaReconciler{producer: producer, topic: topic, logger: logger}
}

// Report implements Reconciler.
func (r *KafkaReconciler) Report(ctx context.Context, event ReconciliationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.producer.Publish(ctx, r.topic, []byte(event.RoundID), payload)
}

// MemoryReconciler records events in memory for tests.
type MemoryReconciler struct {
	mu     sync.Mutex
	events []ReconciliationEvent
}

// NewMemoryReconciler creates an empty in-memory reconciler.
func NewMemoryReconciler() *MemoryReconciler {
	return &MemoryReconciler{}
}

// Report implements Reconciler.
func (r *MemoryReconciler) Report(_ context.Context, event ReconciliationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *MemoryReconciler) Events() []ReconciliationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReconciliationEvent, len(r.events))
	copy(out, r.events)
	return out
}
