package events

import "context"

// Leaser is an optional Store capability: arbitrating a single active
// sweeper across processes. Stores without it rely on conditional
// claims alone, which is already safe, just less efficient when many
// sweepers compete for the same batch.
type Leaser interface {
	// AcquireSweepLease tries to take the sweep lease without blocking.
	// Returns false when another holder has it. Acquiring an
	// already-held lease is a no-op returning true.
	AcquireSweepLease(ctx context.Context) (bool, error)

	// ReleaseSweepLease gives the lease back. Safe to call when the
	// lease is not held.
	ReleaseSweepLease(ctx context.Context) error
}
