package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/praxishq/praxis/modules/core/authz"
	"github.com/praxishq/praxis/modules/core/domain/aggregates/membership"
	"github.com/praxishq/praxis/modules/core/domain/aggregates/tenant"
	"github.com/praxishq/praxis/modules/core/services"
	"github.com/praxishq/praxis/pkg/eventbus"
	"github.com/praxishq/praxis/pkg/events"
	"github.com/praxishq/praxis/pkg/logging"
)

type memTenants struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*tenant.Tenant
}

func newMemTenants() *memTenants {
	return &memTenants{byID: map[uuid.UUID]*tenant.Tenant{}}
}

func (r *memTenants) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return t, nil
}

func (r *memTenants) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.Slug() == slug {
			return t, nil
		}
	}
	return nil, services.ErrNotFound
}

func (r *memTenants) SlugExists(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.Slug() == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *memTenants) ListOwnedBy(_ context.Context, ownerID uuid.UUID) ([]*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*tenant.Tenant
	for _, t := range r.byID {
		if t.OwnerID() == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTenants) Create(_ context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID()] = t
	return t, nil
}

func (r *memTenants) Update(_ context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID()] = t
	return t, nil
}

type memMemberships struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*membership.Membership
	seq  []uuid.UUID
}

func newMemMemberships() *memMemberships {
	return &memMemberships{byID: map[uuid.UUID]*membership.Membership{}}
}

func (r *memMemberships) GetByID(_ context.Context, id uuid.UUID) (*membership.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return m, nil
}

func (r *memMemberships) GetActive(_ context.Context, tenantID, userID uuid.UUID) (*membership.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.seq {
		m := r.byID[id]
		if m.TenantID() == tenantID && m.UserID() == userID && m.IsActive() {
			return m, nil
		}
	}
	return nil, services.ErrNotFound
}

func (r *memMemberships) GetActiveOwner(_ context.Context, tenantID uuid.UUID) (*membership.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.seq {
		m := r.byID[id]
		if m.TenantID() == tenantID && m.Role() == membership.RoleOwner && m.IsActive() {
			return m, nil
		}
	}
	return nil, services.ErrNotFound
}

func (r *memMemberships) ListActiveByTenant(_ context.Context, tenantID uuid.UUID) ([]*membership.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*membership.Membership
	for _, id := range r.seq {
		m := r.byID[id]
		if m.TenantID() == tenantID && m.IsActive() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMemberships) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]*membership.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*membership.Membership
	for _, id := range r.seq {
		m := r.byID[id]
		if m.UserID() == userID && m.IsActive() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMemberships) Create(_ context.Context, m *membership.Membership) (*membership.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID()] = m
	r.seq = append(r.seq, m.ID())
	return m, nil
}

func (r *memMemberships) Update(_ context.Context, m *membership.Membership) (*membership.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID()] = m
	return m, nil
}

type memSubscriptions struct {
	standing map[uuid.UUID]authz.Standing
}

func (r *memSubscriptions) Standing(_ context.Context, tenantID uuid.UUID) (authz.Standing, error) {
	return r.standing[tenantID], nil
}

// passthroughTx runs the function directly; the fakes have no
// transaction semantics to join.
func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type serviceFixture struct {
	svc         *services.TenantService
	resolver    *services.TenantResolver
	evaluator   *authz.Evaluator
	tenants     *memTenants
	memberships *memMemberships
	subs        *memSubscriptions
	store       *events.MemoryStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tenants := newMemTenants()
	memberships := newMemMemberships()
	subs := &memSubscriptions{standing: map[uuid.UUID]authz.Standing{}}
	log := logging.SilentLogger()

	evaluator, err := authz.NewEvaluator(memberships, subs, false, log)
	if err != nil {
		t.Fatalf("evaluator: %v", err)
	}
	bus := eventbus.New(eventbus.Config{Enabled: true, Logger: log})
	store := events.NewMemoryStore()
	publisher, err := events.NewPublisher(bus, store, 3)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}

	return &serviceFixture{
		svc: services.NewTenantService(
			tenants, memberships, evaluator, publisher, log,
			services.WithTxRunner(passthroughTx),
		),
		resolver:    services.NewTenantResolver(tenants, memberships, evaluator),
		evaluator:   evaluator,
		tenants:     tenants,
		memberships: memberships,
		subs:        subs,
		store:       store,
	}
}

// pendingEventNames returns the names of all pending durable records,
// unordered.
func (f *serviceFixture) pendingEventNames(t *testing.T) map[string]int {
	t.Helper()

	names := map[string]int{}
	recs, err := f.store.ClaimPending(context.Background(), 1000)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	for _, rec := range recs {
		names[rec.Name]++
	}
	return names
}
