// Package session owns the session lifecycle: creation, retrieval,
// versioned updates, deletion, and TTL expiry. Private state is
// encrypted before it reaches the store and decrypted on the way out;
// the plaintext never crosses the store boundary.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/stakehouse/rgs/internal/domain"
)

// Store errors. The manager maps these onto the domain taxonomy; the
// store itself stays free of HTTP concerns.
var (
	ErrNotFound  = errors.New("session not found")
	ErrDuplicate = errors.New("session id already exists")
	ErrConflict  = errors.New("session version conflict")
)

// Store is the pluggable session backend. Implementations must provide
// read-after-write consistency per session id and must distinguish
// "not found" from "unavailable": ErrNotFound for the former, any other
// error for the latter.
//
// Update is a compare-and-swap full-record replace: it succeeds only if
// the stored version is exactly one less than the incoming one, and
// returns ErrConflict otherwise.
type Store interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
	// CleanupExpired removes sessions whose last activity is before
	// cutoff, skipping any with an active bonus, and returns the count
	// removed.
	CleanupExpired(ctx context.Context, cutoff time.Time) (int, error)
}
