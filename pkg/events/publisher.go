package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxishq/praxis/pkg/eventbus"
)

// Publisher is the single entry point business modules use to emit
// events. Sync mode runs listeners inline; Durable mode persists the
// record in the caller's transaction and lets the sweep deliver it.
type Publisher struct {
	bus               eventbus.EventBus
	store             Store
	defaultMaxRetries int
	m                 *metrics
}

func NewPublisher(bus eventbus.EventBus, store Store, defaultMaxRetries int) (*Publisher, error) {
	if bus == nil {
		return nil, invalidConfig("bus is required")
	}
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	if defaultMaxRetries <= 0 {
		defaultMaxRetries = 3
	}
	return &Publisher{
		bus:               bus,
		store:             store,
		defaultMaxRetries: defaultMaxRetries,
		m:                 getMetrics(),
	}, nil
}

// Publish emits the event in the given mode. A disabled bus turns the
// call into a no-op for both modes; nothing skipped while disabled is
// replayed on re-enable.
func (p *Publisher) Publish(ctx context.Context, e eventbus.Event, mode Mode) error {
	if !p.bus.Enabled() {
		return nil
	}
	if e.Name == "" {
		return invalidConfig("event name is required")
	}

	switch mode {
	case Sync:
		p.bus.Publish(ctx, e)
		return nil
	case Durable:
		return p.enqueue(ctx, e)
	default:
		return invalidConfig("unknown publish mode %d", mode)
	}
}

func (p *Publisher) enqueue(ctx context.Context, e eventbus.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("events enqueue marshal: %w", err)
	}

	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	rec := &Record{
		ID:         id,
		Name:       e.Name,
		Payload:    payload,
		ActorID:    e.ActorID,
		SubjectID:  e.SubjectID,
		Status:     StatusPending,
		MaxRetries: p.defaultMaxRetries,
		CreatedAt:  time.Now(),
	}
	if err := p.store.Append(ctx, rec); err != nil {
		return err
	}

	p.m.enqueueTotal.WithLabelValues(e.Name).Inc()
	return nil
}
