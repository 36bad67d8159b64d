package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durability contract for event records. The persistence
// engine behind it is not prescribed; PgStore is the production
// implementation, MemoryStore backs tests and single-process setups.
//
// Implementations must make ClaimPending concurrency-safe: two
// concurrent sweep workers must never claim the same record. A
// conditional transition keyed on the current status is sufficient.
type Store interface {
	// Append persists a new record with status pending. For
	// transactional stores it must join the transaction carried by
	// ctx, so that the publisher's state change and the event record
	// commit or roll back together.
	Append(ctx context.Context, rec *Record) error

	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// ClaimPending atomically selects up to limit pending records in
	// creation order, stamps claimed_at, and transitions them to
	// processing.
	ClaimPending(ctx context.Context, limit int) ([]*Record, error)

	// ReclaimStale resets processing records claimed before the cutoff
	// back to pending. Recovers records abandoned by a crashed worker;
	// does not touch retry_count.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)

	// MarkProcessed completes a processing record. Completing an
	// already-terminal record is a no-op.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions a processing record to failed with the
	// given error text. The record is not eligible for the retry pass
	// before retryAt.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string, retryAt time.Time) error

	// RequeueFailed resets failed records that still have retry budget
	// and whose retry delay has elapsed back to pending, clearing
	// last_error and incrementing retry_count. This is the sole place
	// retry_count grows. Returns the number of records requeued.
	RequeueFailed(ctx context.Context, limit int) (int64, error)

	// Requeue resets one failed record to pending regardless of its
	// retry budget. Operator-driven replay only.
	Requeue(ctx context.Context, id uuid.UUID) error

	CountsByStatus(ctx context.Context) (map[Status]int64, error)

	// DeleteProcessedBefore removes processed records older than the
	// cutoff. Pending and failed records are never auto-deleted.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
