package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/praxishq/praxis/modules/core/authz"
	"github.com/praxishq/praxis/modules/core/domain/aggregates/membership"
	"github.com/praxishq/praxis/modules/core/domain/aggregates/tenant"
	"github.com/praxishq/praxis/modules/core/infrastructure/persistence"
	"github.com/praxishq/praxis/pkg/composables"
)

// Hints carries the tenant identifiers extracted from a request, in
// descending trust order: header beats query beats path. Each hint is
// a tenant ID or slug; empty hints are skipped.
type Hints struct {
	Header string
	Query  string
	Path   string
}

func (h Hints) first() string {
	for _, hint := range []string{h.Header, h.Query, h.Path} {
		if hint != "" {
			return hint
		}
	}
	return ""
}

// TenantResolver turns request hints into the tenant the request runs
// against. The highest-priority non-empty hint wins; with no hints the
// resolver falls back to the principal's owned tenant, then to the
// earliest joined active membership.
type TenantResolver struct {
	tenants     tenant.Repository
	memberships membership.Repository
	evaluator   *authz.Evaluator
}

func NewTenantResolver(tenants tenant.Repository, memberships membership.Repository, evaluator *authz.Evaluator) *TenantResolver {
	return &TenantResolver{
		tenants:     tenants,
		memberships: memberships,
		evaluator:   evaluator,
	}
}

// Resolve picks the tenant for the request. A hint that names an
// existing tenant the principal is not a member of resolves to
// ErrForbidden; an unparseable or nonexistent hint resolves to
// ErrNotFound. Membership leaks nothing about other tenants.
func (r *TenantResolver) Resolve(ctx context.Context, p authz.Principal) (*tenant.Tenant, error) {
	return r.ResolveHints(ctx, p, Hints{})
}

func (r *TenantResolver) ResolveHints(ctx context.Context, p authz.Principal, hints Hints) (*tenant.Tenant, error) {
	if hint := hints.first(); hint != "" {
		return r.resolveHint(ctx, p, hint)
	}
	return r.resolveFallback(ctx, p)
}

func (r *TenantResolver) resolveHint(ctx context.Context, p authz.Principal, hint string) (*tenant.Tenant, error) {
	t, err := r.lookupTenant(ctx, hint)
	if errors.Is(err, persistence.ErrTenantNotFound) || errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		// Transient repository failures must not read as "no such
		// tenant" to the caller.
		return nil, err
	}
	if !r.evaluator.Authorize(ctx, p, t.ID(), authz.CapabilityView) {
		return nil, ErrForbidden
	}
	return t, nil
}

// lookupTenant accepts a tenant ID or a slug.
func (r *TenantResolver) lookupTenant(ctx context.Context, hint string) (*tenant.Tenant, error) {
	if id, err := uuid.Parse(hint); err == nil {
		return r.tenants.GetByID(ctx, id)
	}
	return r.tenants.GetBySlug(ctx, hint)
}

func (r *TenantResolver) resolveFallback(ctx context.Context, p authz.Principal) (*tenant.Tenant, error) {
	owned, err := r.tenants.ListOwnedBy(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(owned) > 0 {
		return owned[0], nil
	}

	memberships, err := r.memberships.ListActiveByUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, ErrNotFound
	}
	return r.tenants.GetByID(ctx, memberships[0].TenantID())
}

// Bind attaches the resolved tenant to the context for downstream
// tenant-scoped queries.
func Bind(ctx context.Context, t *tenant.Tenant) context.Context {
	return composables.WithTenantID(ctx, t.ID())
}
