package membership

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is the capability tier a member holds in a tenant. Dominance
// (owner > admin > editor > viewer) is resolved by the authorization
// evaluator, not here.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]struct{}{
	RoleOwner:  {},
	RoleAdmin:  {},
	RoleEditor: {},
	RoleViewer: {},
}

func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

// Status is the membership lifecycle state. Left and removed are
// terminal logical deletes; rows are never physically deleted.
type Status string

const (
	StatusActive  Status = "active"
	StatusLeft    Status = "left"
	StatusRemoved Status = "removed"
)

// Membership associates a principal with a tenant. At most one active
// membership exists per (tenant, user); exactly one active membership
// per tenant holds the owner role.
type Membership struct {
	id        uuid.UUID
	tenantID  uuid.UUID
	userID    uuid.UUID
	role      Role
	status    Status
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Membership)

func WithID(id uuid.UUID) Option {
	return func(m *Membership) {
		m.id = id
	}
}

func WithStatus(status Status) Option {
	return func(m *Membership) {
		m.status = status
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(m *Membership) {
		m.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(m *Membership) {
		m.updatedAt = updatedAt
	}
}

func New(tenantID, userID uuid.UUID, role Role, opts ...Option) *Membership {
	m := &Membership{
		id:        uuid.New(),
		tenantID:  tenantID,
		userID:    userID,
		role:      role,
		status:    StatusActive,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Membership) ID() uuid.UUID {
	return m.id
}

// TenantID satisfies the tenant-scoped object contract used by the
// policy evaluator.
func (m *Membership) TenantID() uuid.UUID {
	return m.tenantID
}

func (m *Membership) UserID() uuid.UUID {
	return m.userID
}

func (m *Membership) Role() Role {
	return m.role
}

func (m *Membership) Status() Status {
	return m.status
}

func (m *Membership) IsActive() bool {
	return m.status == StatusActive
}

func (m *Membership) CreatedAt() time.Time {
	return m.createdAt
}

func (m *Membership) UpdatedAt() time.Time {
	return m.updatedAt
}

func (m *Membership) SetRole(role Role) {
	m.role = role
	m.updatedAt = time.Now()
}

func (m *Membership) MarkLeft() {
	m.status = StatusLeft
	m.updatedAt = time.Now()
}

func (m *Membership) MarkRemoved() {
	m.status = StatusRemoved
	m.updatedAt = time.Now()
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	// GetActive returns the active membership of a user in a tenant.
	GetActive(ctx context.Context, tenantID, userID uuid.UUID) (*Membership, error)
	// GetActiveOwner returns the single active owner membership.
	GetActiveOwner(ctx context.Context, tenantID uuid.UUID) (*Membership, error)
	ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Membership, error)
	// ListActiveByUser returns the user's active memberships ordered
	// by join time.
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error)
	Create(ctx context.Context, m *Membership) (*Membership, error)
	Update(ctx context.Context, m *Membership) (*Membership, error)
}
