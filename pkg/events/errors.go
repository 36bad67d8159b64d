package events

import (
	"fmt"

	"github.com/praxishq/praxis/pkg/serrors"
)

var (
	ErrInvalidConfig = serrors.NewError("EVENTS_INVALID_CONFIG", "invalid events configuration", "")
	ErrNotFound      = serrors.NewError("EVENTS_NOT_FOUND", "event record not found", "")
	// ErrNotRetryable is returned when a manual requeue targets a
	// record that is not in the failed state.
	ErrNotRetryable = serrors.NewError("EVENTS_NOT_RETRYABLE", "event is not in a retryable state", "")
	// ErrTransientDeliveryFailure wraps listener errors during a sweep.
	// It is recorded and logged, never propagated to the publisher.
	ErrTransientDeliveryFailure = serrors.NewError("EVENTS_TRANSIENT_DELIVERY_FAILURE", "listener failed during dispatch", "")
	// ErrExhaustedRetries marks a record that failed with no retry
	// budget left. Surfaced to operators via log and metric.
	ErrExhaustedRetries = serrors.NewError("EVENTS_EXHAUSTED_RETRIES", "event failed after exhausting retries", "")
)

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}
