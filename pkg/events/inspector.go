package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/praxishq/praxis/pkg/eventbus"
)

// Inspector is the operational surface over the event pipeline:
// status counts, listener counts, manual retry, and the bus toggle.
type Inspector struct {
	store Store
	bus   eventbus.EventBus
}

func NewInspector(store Store, bus eventbus.EventBus) (*Inspector, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	if bus == nil {
		return nil, invalidConfig("bus is required")
	}
	return &Inspector{store: store, bus: bus}, nil
}

func (i *Inspector) StatusCounts(ctx context.Context) (map[Status]int64, error) {
	return i.store.CountsByStatus(ctx)
}

func (i *Inspector) ListenerCounts() map[string]int {
	return i.bus.ListenerCounts()
}

// RetryNow requeues one failed record for the next sweep, bypassing
// the automatic retry budget. Operator-driven replay only.
func (i *Inspector) RetryNow(ctx context.Context, id uuid.UUID) error {
	return i.store.Requeue(ctx, id)
}

func (i *Inspector) EnableBus()  { i.bus.SetEnabled(true) }
func (i *Inspector) DisableBus() { i.bus.SetEnabled(false) }
func (i *Inspector) BusEnabled() bool {
	return i.bus.Enabled()
}
