package authz

import (
	"context"

	"github.com/casbin/casbin/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/praxishq/praxis/modules/core/domain/aggregates/membership"
)

// Capability is a named permission check.
type Capability string

const (
	CapabilityView              Capability = "view"
	CapabilityEditContent       Capability = "edit_content"
	CapabilityManageMembers     Capability = "manage_members"
	CapabilityManageBilling     Capability = "manage_billing"
	CapabilityManageTenant      Capability = "manage_tenant"
	CapabilityTransferOwnership Capability = "transfer_ownership"
	CapabilityLeave             Capability = "leave"
)

// subscriptionGate composes a standing check with a capability,
// independent of role.
type subscriptionGate int

const (
	gateNone subscriptionGate = iota
	// gateActiveSubscription requires the tenant to hold an active
	// entitlement.
	gateActiveSubscription
	// gateExistsOrIrrelevant passes when the subscription is active or
	// the tenant has none at all, so billing stays reachable to set
	// one up, but a lapsed subscription blocks the capability.
	gateExistsOrIrrelevant
)

var subscriptionGates = map[Capability]subscriptionGate{
	CapabilityEditContent:   gateActiveSubscription,
	CapabilityManageBilling: gateExistsOrIrrelevant,
}

// Principal is the acting identity for an authorization check.
type Principal struct {
	ID        uuid.UUID
	Superuser bool
}

// TenantScoped is implemented by every domain object that belongs to a
// tenant, so checks never probe object shapes at runtime.
type TenantScoped interface {
	TenantID() uuid.UUID
}

// MembershipLookup is the slice of the membership store the evaluator
// needs.
type MembershipLookup interface {
	GetActive(ctx context.Context, tenantID, userID uuid.UUID) (*membership.Membership, error)
}

// Standing is the derived subscription fact attached to a tenant.
type Standing struct {
	Exists bool
	Active bool
}

// SubscriptionLookup reports a tenant's subscription standing.
type SubscriptionLookup interface {
	Standing(ctx context.Context, tenantID uuid.UUID) (Standing, error)
}

// Evaluator decides whether a principal holds sufficient standing for
// a capability inside a tenant. Role-capability resolution runs
// through a casbin enforcer carrying the role hierarchy; membership
// state and subscription gates compose around it. Decisions are pure
// booleans: "not authorized" is never an error, and lookup errors deny
// closed.
type Evaluator struct {
	enforcer      *casbin.SyncedEnforcer
	memberships   MembershipLookup
	subscriptions SubscriptionLookup
	bypassEnabled bool
	log           *logrus.Logger
}

func NewEvaluator(memberships MembershipLookup, subscriptions SubscriptionLookup, bypassEnabled bool, log *logrus.Logger) (*Evaluator, error) {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	enforcer, err := newEnforcer()
	if err != nil {
		return nil, err
	}
	return &Evaluator{
		enforcer:      enforcer,
		memberships:   memberships,
		subscriptions: subscriptions,
		bypassEnabled: bypassEnabled,
		log:           log,
	}, nil
}

// Authorize reports whether the principal may exercise the capability
// in the tenant.
func (e *Evaluator) Authorize(ctx context.Context, p Principal, tenantID uuid.UUID, cap Capability) bool {
	if e.bypassEnabled && p.Superuser {
		return true
	}

	m, err := e.memberships.GetActive(ctx, tenantID, p.ID)
	if err != nil || m == nil {
		return false
	}

	// An owner cannot leave without transferring ownership first.
	if cap == CapabilityLeave && m.Role() == membership.RoleOwner {
		return false
	}

	allowed, err := e.enforcer.Enforce(string(m.Role()), string(cap))
	if err != nil {
		e.log.WithError(err).WithField("capability", cap).Warn("authz: enforce failed, denying")
		return false
	}
	if !allowed {
		return false
	}

	switch subscriptionGates[cap] {
	case gateNone:
		return true
	default:
		standing, err := e.subscriptions.Standing(ctx, tenantID)
		if err != nil {
			e.log.WithError(err).WithField("tenant_id", tenantID).Warn("authz: subscription lookup failed, denying")
			return false
		}
		if subscriptionGates[cap] == gateExistsOrIrrelevant {
			return standing.Active || !standing.Exists
		}
		return standing.Active
	}
}

// AuthorizeObject authorizes a capability against a tenant-scoped
// domain object.
func (e *Evaluator) AuthorizeObject(ctx context.Context, p Principal, obj TenantScoped, cap Capability) bool {
	if obj == nil {
		return false
	}
	return e.Authorize(ctx, p, obj.TenantID(), cap)
}

// Dominates reports whether role a strictly outranks role b. Equal
// roles never dominate each other, which is what rejects lateral
// edits between peers.
func (e *Evaluator) Dominates(a, b membership.Role) bool {
	if a == b {
		return false
	}
	outranks, err := e.enforcer.GetRoleManager().HasLink(string(a), string(b))
	if err != nil {
		e.log.WithError(err).Warn("authz: role link lookup failed, denying")
		return false
	}
	return outranks
}

// CanManageMember reports whether the actor may edit the target
// membership (role change or removal). On top of the manage_members
// capability this compares the target's role: an admin manages editors
// and viewers but never a peer admin or the owner, and nobody edits
// their own role through the member-management path.
func (e *Evaluator) CanManageMember(ctx context.Context, p Principal, target *membership.Membership) bool {
	if target == nil {
		return false
	}
	if e.bypassEnabled && p.Superuser {
		return true
	}
	if target.UserID() == p.ID {
		return false
	}
	if !e.Authorize(ctx, p, target.TenantID(), CapabilityManageMembers) {
		return false
	}

	actor, err := e.memberships.GetActive(ctx, target.TenantID(), p.ID)
	if err != nil || actor == nil {
		return false
	}
	return e.Dominates(actor.Role(), target.Role())
}
