package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/praxishq/praxis/modules/core/authz"
	"github.com/praxishq/praxis/modules/core/domain/aggregates/membership"
	"github.com/praxishq/praxis/modules/core/domain/aggregates/tenant"
	coreevents "github.com/praxishq/praxis/modules/core/domain/events"
	"github.com/praxishq/praxis/pkg/composables"
	"github.com/praxishq/praxis/pkg/eventbus"
	"github.com/praxishq/praxis/pkg/events"
)

// TenantService owns the tenant and membership lifecycle. Every
// mutation runs in one transaction together with its durable event
// enqueues, so state changes and their notifications commit or roll
// back as a unit.
type TenantService struct {
	tenants     tenant.Repository
	memberships membership.Repository
	evaluator   *authz.Evaluator
	publisher   *events.Publisher
	log         *logrus.Logger
	inTx        func(ctx context.Context, fn func(context.Context) error) error
}

type TenantServiceOption func(*TenantService)

// WithTxRunner overrides the transaction wrapper. Tests pass a
// pass-through runner so fakes work without a database pool.
func WithTxRunner(run func(ctx context.Context, fn func(context.Context) error) error) TenantServiceOption {
	return func(s *TenantService) {
		s.inTx = run
	}
}

func NewTenantService(
	tenants tenant.Repository,
	memberships membership.Repository,
	evaluator *authz.Evaluator,
	publisher *events.Publisher,
	log *logrus.Logger,
	opts ...TenantServiceOption,
) *TenantService {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	s := &TenantService{
		tenants:     tenants,
		memberships: memberships,
		evaluator:   evaluator,
		publisher:   publisher,
		log:         log,
		inTx:        composables.InTx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return s.tenants.GetBySlug(ctx, slug)
}

func (s *TenantService) ListMembers(ctx context.Context, p authz.Principal, tenantID uuid.UUID) ([]*membership.Membership, error) {
	if !s.evaluator.Authorize(ctx, p, tenantID, authz.CapabilityView) {
		return nil, ErrForbidden
	}
	return s.memberships.ListActiveByTenant(ctx, tenantID)
}

// Register creates a tenant owned by the actor, with the owner
// membership in the same transaction. The slug is derived from the
// name and disambiguated with a numeric suffix on collision.
func (s *TenantService) Register(ctx context.Context, actorID uuid.UUID, name string) (*tenant.Tenant, error) {
	var created *tenant.Tenant
	err := s.inTx(ctx, func(txCtx context.Context) error {
		slug, err := s.availableSlug(txCtx, name)
		if err != nil {
			return err
		}

		t, err := s.tenants.Create(txCtx, tenant.New(name, actorID, tenant.WithSlug(slug)))
		if err != nil {
			return err
		}
		owner, err := s.memberships.Create(txCtx, membership.New(t.ID(), actorID, membership.RoleOwner))
		if err != nil {
			return err
		}

		if err := s.publishDurable(txCtx, coreevents.TopicTenantCreated, actorID, t.ID(), map[string]any{
			"tenant_id": t.ID().String(),
			"name":      t.Name(),
			"slug":      t.Slug(),
		}); err != nil {
			return err
		}
		if err := s.publishDurable(txCtx, coreevents.TopicMemberAdded, actorID, owner.ID(), map[string]any{
			"tenant_id": t.ID().String(),
			"user_id":   actorID.String(),
			"role":      string(membership.RoleOwner),
		}); err != nil {
			return err
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *TenantService) availableSlug(ctx context.Context, name string) (string, error) {
	base := tenant.DeriveSlug(name)
	candidate := base
	for i := 2; ; i++ {
		exists, err := s.tenants.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *TenantService) Activate(ctx context.Context, p authz.Principal, tenantID uuid.UUID) error {
	if !s.evaluator.Authorize(ctx, p, tenantID, authz.CapabilityManageTenant) {
		return ErrForbidden
	}
	return s.inTx(ctx, func(txCtx context.Context) error {
		t, err := s.tenants.GetByID(txCtx, tenantID)
		if err != nil {
			return err
		}
		if t.IsActive() {
			return nil
		}
		t.Activate()
		if _, err := s.tenants.Update(txCtx, t); err != nil {
			return err
		}
		return s.publishDurable(txCtx, coreevents.TopicTenantActivated, p.ID, tenantID, map[string]any{
			"tenant_id": tenantID.String(),
		})
	})
}

func (s *TenantService) Verify(ctx context.Context, p authz.Principal, tenantID uuid.UUID) error {
	if !s.evaluator.Authorize(ctx, p, tenantID, authz.CapabilityManageTenant) {
		return ErrForbidden
	}
	return s.inTx(ctx, func(txCtx context.Context) error {
		t, err := s.tenants.GetByID(txCtx, tenantID)
		if err != nil {
			return err
		}
		if t.IsVerified() {
			return nil
		}
		t.MarkVerified()
		if _, err := s.tenants.Update(txCtx, t); err != nil {
			return err
		}
		return s.publishDurable(txCtx, coreevents.TopicTenantVerified, p.ID, tenantID, map[string]any{
			"tenant_id": tenantID.String(),
		})
	})
}

// AddMember grants a user an active membership. The owner role can
// only be obtained through TransferOwnership, and the granted role
// must rank below the actor's own.
func (s *TenantService) AddMember(ctx context.Context, p authz.Principal, tenantID, userID uuid.UUID, role membership.Role) (*membership.Membership, error) {
	if !role.Valid() || role == membership.RoleOwner {
		return nil, ErrConflict
	}
	if !s.evaluator.Authorize(ctx, p, tenantID, authz.CapabilityManageMembers) {
		return nil, ErrForbidden
	}
	actor, err := s.memberships.GetActive(ctx, tenantID, p.ID)
	if err == nil && actor != nil && !s.evaluator.Dominates(actor.Role(), role) {
		return nil, ErrForbidden
	}

	var added *membership.Membership
	err = s.inTx(ctx, func(txCtx context.Context) error {
		if existing, err := s.memberships.GetActive(txCtx, tenantID, userID); err == nil && existing != nil {
			return ErrConflict
		}
		m, err := s.memberships.Create(txCtx, membership.New(tenantID, userID, role))
		if err != nil {
			return err
		}
		added = m
		return s.publishDurable(txCtx, coreevents.TopicMemberAdded, p.ID, m.ID(), map[string]any{
			"tenant_id": tenantID.String(),
			"user_id":   userID.String(),
			"role":      string(role),
		})
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// ChangeMemberRole moves a member to a new non-owner role. The actor
// must dominate both the member's current role and the new one.
func (s *TenantService) ChangeMemberRole(ctx context.Context, p authz.Principal, membershipID uuid.UUID, role membership.Role) error {
	if !role.Valid() || role == membership.RoleOwner {
		return ErrConflict
	}

	target, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return ErrNotFound
	}
	if !target.IsActive() {
		return ErrNotFound
	}
	if !s.evaluator.CanManageMember(ctx, p, target) {
		return ErrForbidden
	}
	actor, err := s.memberships.GetActive(ctx, target.TenantID(), p.ID)
	if err == nil && actor != nil && !s.evaluator.Dominates(actor.Role(), role) {
		return ErrForbidden
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		from := target.Role()
		target.SetRole(role)
		if _, err := s.memberships.Update(txCtx, target); err != nil {
			return err
		}
		return s.publishDurable(txCtx, coreevents.TopicMemberRoleChanged, p.ID, target.ID(), map[string]any{
			"tenant_id": target.TenantID().String(),
			"user_id":   target.UserID().String(),
			"from":      string(from),
			"to":        string(role),
		})
	})
}

func (s *TenantService) RemoveMember(ctx context.Context, p authz.Principal, membershipID uuid.UUID) error {
	target, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return ErrNotFound
	}
	if !target.IsActive() {
		return ErrNotFound
	}
	if !s.evaluator.CanManageMember(ctx, p, target) {
		return ErrForbidden
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		target.MarkRemoved()
		if _, err := s.memberships.Update(txCtx, target); err != nil {
			return err
		}
		return s.publishDurable(txCtx, coreevents.TopicMemberRemoved, p.ID, target.ID(), map[string]any{
			"tenant_id": target.TenantID().String(),
			"user_id":   target.UserID().String(),
		})
	})
}

// Leave ends the actor's own membership. The owner must transfer
// ownership first.
func (s *TenantService) Leave(ctx context.Context, p authz.Principal, tenantID uuid.UUID) error {
	m, err := s.memberships.GetActive(ctx, tenantID, p.ID)
	if err != nil || m == nil {
		return ErrNotFound
	}
	if m.Role() == membership.RoleOwner {
		return ErrConflict
	}
	if !s.evaluator.Authorize(ctx, p, tenantID, authz.CapabilityLeave) {
		return ErrForbidden
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		m.MarkLeft()
		if _, err := s.memberships.Update(txCtx, m); err != nil {
			return err
		}
		return s.publishDurable(txCtx, coreevents.TopicMemberLeft, p.ID, m.ID(), map[string]any{
			"tenant_id": tenantID.String(),
			"user_id":   p.ID.String(),
		})
	})
}

// TransferOwnership demotes the current owner to admin and promotes
// the target member to owner, atomically with the tenant's owner
// reference.
func (s *TenantService) TransferOwnership(ctx context.Context, p authz.Principal, tenantID, newOwnerUserID uuid.UUID) error {
	if !s.evaluator.Authorize(ctx, p, tenantID, authz.CapabilityTransferOwnership) {
		return ErrForbidden
	}
	if p.ID == newOwnerUserID {
		return ErrConflict
	}

	return s.inTx(ctx, func(txCtx context.Context) error {
		current, err := s.memberships.GetActiveOwner(txCtx, tenantID)
		if err != nil {
			return err
		}
		next, err := s.memberships.GetActive(txCtx, tenantID, newOwnerUserID)
		if err != nil || next == nil {
			return ErrNotFound
		}

		current.SetRole(membership.RoleAdmin)
		if _, err := s.memberships.Update(txCtx, current); err != nil {
			return err
		}
		next.SetRole(membership.RoleOwner)
		if _, err := s.memberships.Update(txCtx, next); err != nil {
			return err
		}

		t, err := s.tenants.GetByID(txCtx, tenantID)
		if err != nil {
			return err
		}
		t.SetOwner(newOwnerUserID)
		if _, err := s.tenants.Update(txCtx, t); err != nil {
			return err
		}

		return s.publishDurable(txCtx, coreevents.TopicOwnershipTransferred, p.ID, tenantID, map[string]any{
			"tenant_id": tenantID.String(),
			"from_user": current.UserID().String(),
			"to_user":   newOwnerUserID.String(),
		})
	})
}

func (s *TenantService) publishDurable(ctx context.Context, name string, actorID, subjectID uuid.UUID, payload map[string]any) error {
	return s.publisher.Publish(ctx, eventbus.Event{
		Name:      name,
		Payload:   payload,
		ActorID:   actorID,
		SubjectID: subjectID,
	}, events.Durable)
}
