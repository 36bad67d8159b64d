package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/praxishq/praxis/pkg/eventbus"
)

// Sweeper is the periodic worker that claims pending durable events,
// delivers them through the bus, and requeues failed ones within their
// retry budget. It runs decoupled from request handling.
type Sweeper struct {
	store Store
	bus   eventbus.EventBus
	opts  SweeperOptions
	m     *metrics
}

func NewSweeper(store Store, bus eventbus.EventBus, opts SweeperOptions) (*Sweeper, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	if bus == nil {
		return nil, invalidConfig("bus is required")
	}
	opts.setDefaults()
	if opts.Logger == nil {
		opts.Logger = logrusNop()
	}
	return &Sweeper{store: store, bus: bus, opts: opts, m: getMetrics()}, nil
}

func (s *Sweeper) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	if leaser, ok := s.store.(Leaser); ok && s.opts.SingleActive {
		defer func() {
			if err := leaser.ReleaseSweepLease(context.WithoutCancel(ctx)); err != nil {
				s.opts.Logger.WithError(err).Warn("events: release sweep lease failed")
			}
		}()
	}

	nextDepthAt := time.Now()
	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := s.observeDepth(ctx); err != nil {
				s.opts.Logger.WithError(err).Debug("events: observe status depth failed")
			}
			nextDepthAt = time.Now().Add(s.opts.ObserveDepthEvery)
		}

		if _, err := s.SweepOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			consecutiveFailures++
			s.opts.Logger.WithError(err).Warn("events: sweep tick failed")
			delay := backoff(consecutiveFailures, s.opts.MaxBackoff) + jitter(s.opts.Rand, s.opts.JitterMax)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		consecutiveFailures = 0
	}
}

// SweepOnce runs one sweep iteration: claim a batch of pending records,
// dispatch each, then requeue failed records that still have retry
// budget. Returns how many records were dispatched.
//
// An individual listener's failure does not fail the record: with
// several listeners, delivery counts as processed even when one
// consumer errored. The record is marked failed only when every
// listener invocation failed, or when the claim/dispatch plumbing
// itself errors (e.g. an undecodable payload).
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if !s.bus.Enabled() {
		return 0, nil
	}

	if s.opts.SingleActive {
		if leaser, ok := s.store.(Leaser); ok {
			held, err := leaser.AcquireSweepLease(ctx)
			if err != nil {
				return 0, err
			}
			if !held {
				return 0, nil
			}
		}
	}

	if s.opts.LockTTL > 0 {
		reclaimed, err := s.store.ReclaimStale(ctx, time.Now().Add(-s.opts.LockTTL))
		if err != nil {
			return 0, err
		}
		if reclaimed > 0 {
			s.opts.Logger.WithField("count", reclaimed).Warn("events: reclaimed stale claims")
		}
	}

	claimed, err := s.store.ClaimPending(ctx, s.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	// The claim is not required to return records in creation order.
	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].CreatedAt.Before(claimed[j].CreatedAt)
	})

	for _, rec := range claimed {
		s.deliver(ctx, rec)
	}

	if _, err := s.store.RequeueFailed(ctx, s.opts.BatchSize); err != nil {
		return len(claimed), err
	}

	return len(claimed), nil
}

func (s *Sweeper) deliver(ctx context.Context, rec *Record) {
	dispatchCtx := ctx
	var cancel func()
	if s.opts.DispatchTimeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, s.opts.DispatchTimeout)
	}
	start := time.Now()
	err := s.dispatch(dispatchCtx, rec)
	if cancel != nil {
		cancel()
	}
	latency := time.Since(start)

	if err != nil {
		s.recordDispatch(rec.Name, "failure", latency)
		lastErr := truncateError(err, s.opts.LastErrorMaxLen)
		retryAt := time.Now().Add(s.opts.RetryBackoff(rec.RetryCount + 1))
		if markErr := s.store.MarkFailed(ctx, rec.ID, lastErr, retryAt); markErr != nil {
			s.opts.Logger.WithError(markErr).WithFields(logFields(rec)).Warn("events: mark failed update failed")
			return
		}
		if rec.Exhausted() {
			s.m.deadTotal.WithLabelValues(rec.Name).Inc()
			s.opts.Logger.WithFields(logFields(rec)).WithError(fmt.Errorf("%w: %s", ErrExhaustedRetries, lastErr)).
				Error("events: record failed with no retry budget left")
		}
		return
	}

	s.recordDispatch(rec.Name, "success", latency)
	if err := s.store.MarkProcessed(ctx, rec.ID); err != nil {
		s.opts.Logger.WithError(err).WithFields(logFields(rec)).Warn("events: mark processed failed")
	}
}

// dispatch decodes the record and runs the registered listeners in
// priority order. Listener errors are contained and logged; only
// plumbing errors propagate.
func (s *Sweeper) dispatch(ctx context.Context, rec *Record) error {
	var payload map[string]any
	if len(rec.Payload) > 0 {
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return fmt.Errorf("events dispatch decode %q: %w", rec.Name, err)
		}
	}

	e := eventbus.Event{
		ID:        rec.ID,
		Name:      rec.Name,
		Payload:   payload,
		ActorID:   rec.ActorID,
		SubjectID: rec.SubjectID,
	}
	res := s.bus.Dispatch(ctx, e)
	if res.AllFailed() {
		return fmt.Errorf("%w: %s", ErrTransientDeliveryFailure, res.Err)
	}
	if res.Err != nil {
		s.opts.Logger.WithFields(logFields(rec)).
			WithError(fmt.Errorf("%w: %s", ErrTransientDeliveryFailure, res.Err)).
			Warn("events: listener failures during sweep delivery")
	}
	return nil
}

func (s *Sweeper) observeDepth(ctx context.Context) error {
	counts, err := s.store.CountsByStatus(ctx)
	if err != nil {
		return err
	}
	for _, status := range []Status{StatusPending, StatusProcessing, StatusProcessed, StatusFailed} {
		s.m.statusDepth.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return nil
}

func (s *Sweeper) recordDispatch(name, result string, latency time.Duration) {
	s.m.dispatchTotal.WithLabelValues(name, result).Inc()
	s.m.dispatchLatency.WithLabelValues(name, result).Observe(latency.Seconds())
}

func logFields(rec *Record) map[string]any {
	return map[string]any{
		"event":       rec.Name,
		"event_id":    rec.ID.String(),
		"retry_count": rec.RetryCount,
		"max_retries": rec.MaxRetries,
	}
}
