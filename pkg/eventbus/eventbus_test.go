package eventbus

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(enabled bool) (EventBus, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(logrus.WarnLevel)
	return New(Config{Enabled: enabled, Logger: log}), buf
}

func TestBus_PriorityOrder(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(true)

	var order []string
	bus.Subscribe("member.added", func(ctx context.Context, e Event) error {
		order = append(order, "low")
		return nil
	}, 5)
	bus.Subscribe("member.added", func(ctx context.Context, e Event) error {
		order = append(order, "high")
		return nil
	}, 10)

	bus.Publish(context.Background(), Event{Name: "member.added"})

	require.Equal(t, []string{"high", "low"}, order)
}

func TestBus_TiesPreserveRegistrationOrder(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(true)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe("tenant.created", func(ctx context.Context, e Event) error {
			order = append(order, i)
			return nil
		}, 0)
	}

	bus.Publish(context.Background(), Event{Name: "tenant.created"})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_ListenerIsolation(t *testing.T) {
	t.Parallel()

	t.Run("panicking listener does not stop siblings", func(t *testing.T) {
		bus, buf := newTestBus(true)

		called := false
		bus.Subscribe("tenant.activated", func(ctx context.Context, e Event) error {
			panic("intentional panic for testing")
		}, 10)
		bus.Subscribe("tenant.activated", func(ctx context.Context, e Event) error {
			called = true
			return nil
		}, 0)

		bus.Publish(context.Background(), Event{Name: "tenant.activated"})

		assert.True(t, called, "lower-priority listener should still run")
		output := buf.String()
		if !strings.Contains(output, "panicked") {
			t.Errorf("log should contain 'panicked', got: %q", output)
		}
	})

	t.Run("erroring listener does not stop siblings", func(t *testing.T) {
		bus, buf := newTestBus(true)

		called := false
		bus.Subscribe("tenant.activated", func(ctx context.Context, e Event) error {
			return errors.New("boom")
		}, 10)
		bus.Subscribe("tenant.activated", func(ctx context.Context, e Event) error {
			called = true
			return nil
		}, 0)

		bus.Publish(context.Background(), Event{Name: "tenant.activated"})

		assert.True(t, called)
		assert.Contains(t, buf.String(), "listener returned error")
	})
}

func TestBus_PublishECollectsErrors(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(true)

	bus.Subscribe("tenant.verified", func(ctx context.Context, e Event) error {
		return errors.New("first")
	}, 0)
	bus.Subscribe("tenant.verified", func(ctx context.Context, e Event) error {
		return errors.New("second")
	}, 0)

	err := bus.PublishE(context.Background(), Event{Name: "tenant.verified"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(true)

	called := false
	id := bus.Subscribe("member.removed", func(ctx context.Context, e Event) error {
		called = true
		return nil
	}, 0)

	require.Equal(t, 1, bus.ListenerCount("member.removed"))
	require.True(t, bus.Unsubscribe("member.removed", id))
	require.Equal(t, 0, bus.ListenerCount("member.removed"))
	assert.False(t, bus.Unsubscribe("member.removed", id), "second unsubscribe should report false")

	bus.Publish(context.Background(), Event{Name: "member.removed"})
	assert.False(t, called)
}

func TestBus_Disabled(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(false)

	called := false
	bus.Subscribe("tenant.created", func(ctx context.Context, e Event) error {
		called = true
		return nil
	}, 0)

	bus.Publish(context.Background(), Event{Name: "tenant.created"})
	assert.False(t, called, "disabled bus must no-op")

	bus.SetEnabled(true)
	bus.Publish(context.Background(), Event{Name: "tenant.created"})
	assert.True(t, called, "re-enabled bus delivers new publishes")
}

func TestBus_NoListenersLogsWarning(t *testing.T) {
	t.Parallel()

	bus, buf := newTestBus(true)
	bus.Publish(context.Background(), Event{Name: "tenant.unknown"})

	if output := buf.String(); !strings.Contains(output, "no listeners registered") {
		t.Errorf("should have warned about missing listeners, got: %q", output)
	}
}

func TestBus_ListenerCounts(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(true)
	noop := func(ctx context.Context, e Event) error { return nil }

	bus.Subscribe("a", noop, 0)
	bus.Subscribe("a", noop, 1)
	bus.Subscribe("b", noop, 0)

	counts := bus.ListenerCounts()
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 1, counts["b"])
}
