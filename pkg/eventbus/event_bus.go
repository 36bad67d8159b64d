package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event is an immutable fact published on the bus. Name is a
// dot-namespaced topic, e.g. "tenant.member_added". ActorID and
// SubjectID are optional correlation to the acting principal and the
// domain object the event is about.
type Event struct {
	ID        uuid.UUID
	Name      string
	Payload   map[string]any
	ActorID   uuid.UUID
	SubjectID uuid.UUID
}

// Handler consumes a published event. A non-nil error (or a panic) is
// contained by the bus: it is logged and never reaches the publisher
// or sibling listeners.
type Handler func(ctx context.Context, e Event) error

// Config is passed at construction so tests can build isolated bus
// instances instead of flipping process-wide state.
type Config struct {
	Enabled bool
	Logger  *logrus.Logger
}

type EventBus interface {
	// Subscribe registers a handler for the named event. Handlers run
	// in descending priority order; ties preserve registration order.
	Subscribe(name string, handler Handler, priority int) uuid.UUID
	Unsubscribe(name string, subscriptionID uuid.UUID) bool

	// Publish invokes every listener for the event name inline.
	// Listener failures are logged, not propagated.
	Publish(ctx context.Context, e Event)

	// PublishE is Publish collecting listener errors.
	PublishE(ctx context.Context, e Event) error

	// Dispatch invokes listeners like Publish but reports per-listener
	// outcomes, for callers that record delivery results (the durable
	// sweep).
	Dispatch(ctx context.Context, e Event) DispatchResult

	ListenerCount(name string) int
	ListenerCounts() map[string]int

	SetEnabled(enabled bool)
	Enabled() bool
}

// DispatchResult summarizes one delivery: how many listeners were
// invoked, how many of them failed, and their joined errors.
type DispatchResult struct {
	Attempted int
	Failed    int
	Err       error
}

// AllFailed reports whether every invoked listener failed. Zero
// listeners is not a failure: delivery was attempted.
func (r DispatchResult) AllFailed() bool {
	return r.Attempted > 0 && r.Failed == r.Attempted
}

type subscription struct {
	id       uuid.UUID
	priority int
	seq      uint64
	handler  Handler
}

type busImpl struct {
	mu      sync.RWMutex
	enabled bool
	nextSeq uint64
	log     *logrus.Logger
	byName  map[string][]subscription
}

func New(cfg Config) EventBus {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &busImpl{
		enabled: cfg.Enabled,
		log:     log,
		byName:  map[string][]subscription{},
	}
}

func (b *busImpl) Subscribe(name string, handler Handler, priority int) uuid.UUID {
	if handler == nil {
		panic("eventbus: handler must not be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{
		id:       uuid.New(),
		priority: priority,
		seq:      b.nextSeq,
		handler:  handler,
	}
	b.nextSeq++

	subs := append(b.byName[name], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	b.byName[name] = subs

	return sub.id
}

func (b *busImpl) Unsubscribe(name string, subscriptionID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.byName[name]
	for i, sub := range subs {
		if sub.id == subscriptionID {
			b.byName[name] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

func (b *busImpl) Publish(ctx context.Context, e Event) {
	if err := b.PublishE(ctx, e); err != nil {
		b.log.WithError(err).WithField("event", e.Name).Error("eventbus: listener failures during publish")
	}
}

func (b *busImpl) PublishE(ctx context.Context, e Event) error {
	return b.Dispatch(ctx, e).Err
}

func (b *busImpl) Dispatch(ctx context.Context, e Event) DispatchResult {
	if !b.Enabled() {
		return DispatchResult{}
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.byName[e.Name]))
	copy(subs, b.byName[e.Name])
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.log.WithField("event", e.Name).Warn("eventbus: no listeners registered")
		return DispatchResult{}
	}

	res := DispatchResult{Attempted: len(subs)}
	var errs []error
	for _, sub := range subs {
		if err := b.invoke(ctx, sub, e); err != nil {
			res.Failed++
			errs = append(errs, err)
		}
	}
	res.Err = errors.Join(errs...)
	return res
}

// invoke runs one listener with panic containment so one bad listener
// cannot abort the publisher or its siblings.
func (b *busImpl) invoke(ctx context.Context, sub subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: listener %s for %q panicked: %v", sub.id, e.Name, r)
			b.log.WithField("event", e.Name).WithField("subscription", sub.id.String()).Errorf("eventbus: listener panicked: %v", r)
		}
	}()
	if err := sub.handler(ctx, e); err != nil {
		b.log.WithError(err).WithField("event", e.Name).WithField("subscription", sub.id.String()).Error("eventbus: listener returned error")
		return fmt.Errorf("eventbus: listener %s for %q: %w", sub.id, e.Name, err)
	}
	return nil
}

func (b *busImpl) ListenerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byName[name])
}

func (b *busImpl) ListenerCounts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[string]int, len(b.byName))
	for name, subs := range b.byName {
		counts[name] = len(subs)
	}
	return counts
}

func (b *busImpl) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

func (b *busImpl) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}
