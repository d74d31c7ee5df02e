package store

import (
	"context"
	"errors"
	"time"

	"github.com/contextwizard/wizardd/internal/domain"
)

// ErrDuplicateCode is returned by Put when the code already identifies a
// pending annotation. Callers regenerate the code and retry.
var ErrDuplicateCode = errors.New("code already pending")

// ErrNotFound is returned when no pending annotation exists for a code.
// During command/sweep races this is the expected losing outcome, not a
// failure.
var ErrNotFound = errors.New("code not found")

// ErrInvalidExpiry is returned by Put for expiry timestamps in the past or
// further out than MaxTTL.
var ErrInvalidExpiry = errors.New("invalid expiry timestamp")

// MaxTTL bounds how far in the future an annotation may expire.
const MaxTTL = 24 * time.Hour

// PendingStore is durable keyed storage for pending annotations.
//
// Implementations must be safe for concurrent use: webhook handlers and the
// expiry sweeper touch the same records. Delete in particular must be atomic
// per key so that of any number of concurrent callers exactly one observes
// success and the rest observe ErrNotFound.
type PendingStore interface {
	// Put inserts a record keyed by its code. Fails with ErrDuplicateCode
	// if the code is already pending.
	Put(ctx context.Context, rec domain.PendingAnnotation) error

	// Get returns the record for a code, or ErrNotFound.
	Get(ctx context.Context, code string) (domain.PendingAnnotation, error)

	// Delete removes the record for a code. Returns ErrNotFound if no such
	// record exists, including when another caller deleted it first.
	Delete(ctx context.Context, code string) error

	// ListExpired returns all records with ExpiresAt <= now. It does not
	// remove them; retirement is a separate caller-driven step so a failed
	// downstream delete never silently loses tracking.
	ListExpired(ctx context.Context, now time.Time) ([]domain.PendingAnnotation, error)

	Close() error
}
