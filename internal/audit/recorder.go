// Package audit is the append-only regulatory record of every round.
// Records are written once, never mutated, and each carries a
// cryptographic hash of its canonicalized outcome so post-hoc
// tampering of stored data can be detected.
package audit

import (
	"context"
	"errors"

	"github.com/stakehouse/rgs/internal/domain"
)

// ErrRoundNotFound is returned by GetRound when no record exists for
// the round id.
var ErrRoundNotFound = errors.New("round not found")

// Recorder is the audit store contract. RecordRound must refuse to
// overwrite an existing round id; reads are read-only.
type Recorder interface {
	RecordRound(ctx context.Context, record *domain.GameRoundRecord) error
	GetRound(ctx context.Context, roundID string) (*domain.GameRoundRecord, error)
	GetSessionRounds(ctx context.Context, sessionID string) ([]*domain.GameRoundRecord, error)
}

// VerifyRound recomputes the canonical-form hash of a stored round's
// outcome payload and compares it to the stored hash. False means the
// stored payload or hash was altered after recording; this detects
// tampering or corruption, not engine correctness.
func VerifyRound(ctx context.Context, r Recorder, roundID string) (bool, error) {
	record, err := r.GetRound(ctx, roundID)
	if err != nil {
		return false, err
	}
	hash, err := OutcomeHash(record.Outcome)
	if err != nil {
		return false, err
	}
	return hash == record.OutcomeHash, nil
}
