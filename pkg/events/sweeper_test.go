package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/praxis/pkg/eventbus"
)

func silentBus(enabled bool) eventbus.EventBus {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return eventbus.New(eventbus.Config{Enabled: enabled, Logger: log})
}

func newPipeline(t *testing.T, bus eventbus.EventBus) (*Publisher, *Sweeper, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	pub, err := NewPublisher(bus, store, 3)
	require.NoError(t, err)
	// Zero retry delay so requeue eligibility does not depend on the
	// wall clock inside tests.
	sweeper, err := NewSweeper(store, bus, SweeperOptions{
		BatchSize:    10,
		RetryBackoff: func(int) time.Duration { return 0 },
	})
	require.NoError(t, err)
	return pub, sweeper, store
}

func TestSweeper_HappyPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	pub, sweeper, store := newPipeline(t, bus)

	delivered := 0
	bus.Subscribe("tenant.created", func(ctx context.Context, e eventbus.Event) error {
		delivered++
		return nil
	}, 0)

	e := eventbus.Event{ID: uuid.New(), Name: "tenant.created", Payload: map[string]any{"slug": "acme"}}
	require.NoError(t, pub.Publish(ctx, e, Durable))

	// Durable publish defers delivery to the sweep.
	assert.Equal(t, 0, delivered)

	rec, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, delivered)

	rec, err = store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, rec.Status)
	require.NotNil(t, rec.ProcessedAt)
	assert.Empty(t, rec.LastError)
}

func TestSweeper_ProcessedIsNeverReselected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	pub, sweeper, _ := newPipeline(t, bus)

	calls := 0
	bus.Subscribe("tenant.verified", func(ctx context.Context, e eventbus.Event) error {
		calls++
		return nil
	}, 0)

	require.NoError(t, pub.Publish(ctx, eventbus.Event{Name: "tenant.verified"}, Durable))

	_, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		n, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}
	assert.Equal(t, 1, calls)
}

func TestSweeper_PartialListenerFailureStillProcessed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	pub, sweeper, store := newPipeline(t, bus)

	bus.Subscribe("member.added", func(ctx context.Context, e eventbus.Event) error {
		return errors.New("consumer broken")
	}, 10)
	bus.Subscribe("member.added", func(ctx context.Context, e eventbus.Event) error {
		return nil
	}, 0)

	e := eventbus.Event{ID: uuid.New(), Name: "member.added"}
	require.NoError(t, pub.Publish(ctx, e, Durable))

	_, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)

	rec, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, rec.Status, "one healthy consumer means delivery succeeded")
}

func TestSweeper_AllListenersFailingExhaustsRetries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	pub, sweeper, store := newPipeline(t, bus)

	attempts := 0
	bus.Subscribe("billing.sync", func(ctx context.Context, e eventbus.Event) error {
		attempts++
		return errors.New("always down")
	}, 0)

	e := eventbus.Event{ID: uuid.New(), Name: "billing.sync"}
	require.NoError(t, pub.Publish(ctx, e, Durable))

	// Sweep until the record stops moving.
	for i := 0; i < 10; i++ {
		_, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
	}

	rec, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, 3, rec.RetryCount, "retry budget is consumed exactly")
	assert.NotEmpty(t, rec.LastError)
	// Initial attempt plus three requeues.
	assert.Equal(t, 4, attempts)

	// Terminal: further sweeps never requeue it.
	for i := 0; i < 3; i++ {
		_, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
	}
	rec, err = store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, 4, attempts)
}

func TestSweeper_StaleClaimIsReclaimed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	store := NewMemoryStore()
	pub, err := NewPublisher(bus, store, 3)
	require.NoError(t, err)
	sweeper, err := NewSweeper(store, bus, SweeperOptions{
		BatchSize:    10,
		LockTTL:      time.Millisecond,
		RetryBackoff: func(int) time.Duration { return 0 },
	})
	require.NoError(t, err)

	delivered := 0
	bus.Subscribe("tenant.created", func(ctx context.Context, e eventbus.Event) error {
		delivered++
		return nil
	}, 0)

	e := eventbus.Event{ID: uuid.New(), Name: "tenant.created"}
	require.NoError(t, pub.Publish(ctx, e, Durable))

	// A worker claims the record and dies before reporting an outcome.
	claimed, err := store.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	rec, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, rec.Status)

	time.Sleep(5 * time.Millisecond)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, delivered)

	rec, err = store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, rec.Status)
	// Reclaiming an abandoned claim never charges the retry budget.
	assert.Equal(t, 0, rec.RetryCount)
}

func TestSweeper_FreshClaimIsNotReclaimed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	rec := &Record{
		ID:         uuid.New(),
		Name:       "tenant.created",
		Status:     StatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Append(ctx, rec))

	_, err := store.ClaimPending(ctx, 10)
	require.NoError(t, err)

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, reclaimed)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestSweeper_RetryDelayDefersRequeue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	store := NewMemoryStore()
	pub, err := NewPublisher(bus, store, 3)
	require.NoError(t, err)
	sweeper, err := NewSweeper(store, bus, SweeperOptions{
		BatchSize:    10,
		RetryBackoff: func(int) time.Duration { return time.Hour },
	})
	require.NoError(t, err)

	attempts := 0
	bus.Subscribe("billing.sync", func(ctx context.Context, e eventbus.Event) error {
		attempts++
		return errors.New("always down")
	}, 0)

	e := eventbus.Event{ID: uuid.New(), Name: "billing.sync"}
	require.NoError(t, pub.Publish(ctx, e, Durable))

	for i := 0; i < 10; i++ {
		_, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
	}

	// One attempt only: the record sits out its retry delay instead of
	// being requeued on the very next tick.
	assert.Equal(t, 1, attempts)

	rec, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, 0, rec.RetryCount)
	require.NotNil(t, rec.NextAttemptAt)
	assert.True(t, rec.NextAttemptAt.After(time.Now()))
}

// reversedClaimStore returns claimed batches newest-first, as a store
// without an ordering guarantee on the claim might.
type reversedClaimStore struct {
	*MemoryStore
}

func (s *reversedClaimStore) ClaimPending(ctx context.Context, limit int) ([]*Record, error) {
	claimed, err := s.MemoryStore.ClaimPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(claimed)-1; i < j; i, j = i+1, j-1 {
		claimed[i], claimed[j] = claimed[j], claimed[i]
	}
	return claimed, nil
}

func TestSweeper_DeliversInCreationOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	store := &reversedClaimStore{MemoryStore: NewMemoryStore()}
	sweeper, err := NewSweeper(store, bus, SweeperOptions{
		BatchSize:    10,
		RetryBackoff: func(int) time.Duration { return 0 },
	})
	require.NoError(t, err)

	var order []string
	bus.Subscribe("audit.write", func(ctx context.Context, e eventbus.Event) error {
		order = append(order, e.Payload["seq"].(string))
		return nil
	}, 0)

	base := time.Now()
	for i, seq := range []string{"first", "second", "third"} {
		rec := &Record{
			ID:         uuid.New(),
			Name:       "audit.write",
			Payload:    []byte(`{"seq": "` + seq + `"}`),
			Status:     StatusPending,
			MaxRetries: 3,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Append(ctx, rec))
	}

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSweeper_UndecodablePayloadFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	_, sweeper, store := newPipeline(t, bus)

	bus.Subscribe("tenant.created", func(ctx context.Context, e eventbus.Event) error { return nil }, 0)

	rec := &Record{
		ID:         uuid.New(),
		Name:       "tenant.created",
		Payload:    []byte("{not json"),
		Status:     StatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Append(ctx, rec))

	_, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	// The record is requeued by the retry pass in the same sweep, so it
	// is either failed or already pending again with budget consumed.
	if got.Status == StatusFailed {
		assert.NotEmpty(t, got.LastError)
	} else {
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, 1, got.RetryCount)
	}
}

func TestSweeper_RoundTripAllTerminal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	pub, sweeper, store := newPipeline(t, bus)

	bus.Subscribe("audit.write", func(ctx context.Context, e eventbus.Event) error {
		if e.Payload["fail"] == true {
			return errors.New("poison")
		}
		return nil
	}, 0)

	const total = 20
	for i := 0; i < total; i++ {
		payload := map[string]any{"fail": i%4 == 0}
		require.NoError(t, pub.Publish(ctx, eventbus.Event{Name: "audit.write", Payload: payload}, Durable))
	}

	for i := 0; i < 20; i++ {
		_, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
	}

	counts, err := store.CountsByStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[StatusPending])
	assert.Zero(t, counts[StatusProcessing])
	assert.Equal(t, int64(total), counts[StatusProcessed]+counts[StatusFailed])
}

func TestSweeper_DisabledBusSkipsClaiming(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	pub, sweeper, store := newPipeline(t, bus)

	bus.Subscribe("tenant.created", func(ctx context.Context, e eventbus.Event) error { return nil }, 0)

	e := eventbus.Event{ID: uuid.New(), Name: "tenant.created"}
	require.NoError(t, pub.Publish(ctx, e, Durable))

	bus.SetEnabled(false)
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	rec, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status, "maintenance window keeps records pending")
}

func TestPublisher_DisabledBusDropsBothModes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(false)
	pub, _, store := newPipeline(t, bus)

	called := false
	bus.Subscribe("tenant.created", func(ctx context.Context, e eventbus.Event) error {
		called = true
		return nil
	}, 0)

	require.NoError(t, pub.Publish(ctx, eventbus.Event{Name: "tenant.created"}, Sync))
	require.NoError(t, pub.Publish(ctx, eventbus.Event{Name: "tenant.created"}, Durable))

	assert.False(t, called)
	counts, err := store.CountsByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestInspector_RetryNow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := silentBus(true)
	pub, sweeper, store := newPipeline(t, bus)

	inspector, err := NewInspector(store, bus)
	require.NoError(t, err)

	healthy := false
	bus.Subscribe("billing.sync", func(ctx context.Context, e eventbus.Event) error {
		if healthy {
			return nil
		}
		return errors.New("still down")
	}, 0)

	e := eventbus.Event{ID: uuid.New(), Name: "billing.sync"}
	require.NoError(t, pub.Publish(ctx, e, Durable))

	for i := 0; i < 10; i++ {
		_, err := sweeper.SweepOnce(ctx)
		require.NoError(t, err)
	}
	rec, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, rec.Status)

	// Retrying a non-failed record is rejected.
	assert.ErrorIs(t, inspector.RetryNow(ctx, uuid.New()), ErrNotFound)

	healthy = true
	require.NoError(t, inspector.RetryNow(ctx, e.ID))

	_, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)

	rec, err = store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, rec.Status)

	assert.ErrorIs(t, inspector.RetryNow(ctx, e.ID), ErrNotRetryable)
}

func TestCleaner_RetentionWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	oldRec := &Record{ID: uuid.New(), Name: "a", Status: StatusProcessed, ProcessedAt: &old, CreatedAt: old}
	recentRec := &Record{ID: uuid.New(), Name: "a", Status: StatusProcessed, ProcessedAt: &recent, CreatedAt: recent}
	failedRec := &Record{ID: uuid.New(), Name: "a", Status: StatusFailed, CreatedAt: old}
	require.NoError(t, store.Append(ctx, oldRec))
	require.NoError(t, store.Append(ctx, recentRec))
	require.NoError(t, store.Append(ctx, failedRec))

	cleaner, err := NewCleaner(store, CleanerOptions{Enabled: true, Retention: 24 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, cleaner.CleanOnce(ctx))

	_, err = store.Get(ctx, oldRec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, recentRec.ID)
	assert.NoError(t, err)

	// Failed records are never auto-deleted, however old.
	_, err = store.Get(ctx, failedRec.ID)
	assert.NoError(t, err)
}
