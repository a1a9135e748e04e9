// Package limiter defines interfaces and implementations for throttling
// unlock attempts. Unlocking reopens finalized financial history, so repeated
// failed attempts from one user/address pair are temporarily blocked.
package limiter

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Limiter controls unlock attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether an unlock attempt is currently allowed and an
	// optional retry-after duration.
	Allow(ctx context.Context, userID uuid.UUID, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful unlock.
	Success(ctx context.Context, userID uuid.UUID, ipHash []byte) error
	// Failure records a rejected attempt; may place a temporary block.
	Failure(ctx context.Context, userID uuid.UUID, ipHash []byte) (bool, time.Duration, error)
}
