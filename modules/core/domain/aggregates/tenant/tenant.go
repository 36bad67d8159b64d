package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated workspace. It has exactly one owner at all
// times; the slug is globally unique and immutable once assigned.
type Tenant struct {
	id         uuid.UUID
	name       string
	slug       string
	isActive   bool
	isVerified bool
	ownerID    uuid.UUID
	createdAt  time.Time
	updatedAt  time.Time
}

type Option func(*Tenant)

func WithID(id uuid.UUID) Option {
	return func(t *Tenant) {
		t.id = id
	}
}

func WithSlug(slug string) Option {
	return func(t *Tenant) {
		t.slug = slug
	}
}

func WithIsActive(isActive bool) Option {
	return func(t *Tenant) {
		t.isActive = isActive
	}
}

func WithIsVerified(isVerified bool) Option {
	return func(t *Tenant) {
		t.isVerified = isVerified
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(t *Tenant) {
		t.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(t *Tenant) {
		t.updatedAt = updatedAt
	}
}

func New(name string, ownerID uuid.UUID, opts ...Option) *Tenant {
	t := &Tenant{
		id:        uuid.New(),
		name:      name,
		ownerID:   ownerID,
		isActive:  true,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tenant) ID() uuid.UUID {
	return t.id
}

// TenantID satisfies the tenant-scoped object contract used by the
// policy evaluator.
func (t *Tenant) TenantID() uuid.UUID {
	return t.id
}

func (t *Tenant) Name() string {
	return t.name
}

func (t *Tenant) Slug() string {
	return t.slug
}

func (t *Tenant) IsActive() bool {
	return t.isActive
}

func (t *Tenant) IsVerified() bool {
	return t.isVerified
}

func (t *Tenant) OwnerID() uuid.UUID {
	return t.ownerID
}

func (t *Tenant) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Tenant) UpdatedAt() time.Time {
	return t.updatedAt
}

func (t *Tenant) Activate() {
	t.isActive = true
	t.updatedAt = time.Now()
}

func (t *Tenant) Deactivate() {
	t.isActive = false
	t.updatedAt = time.Now()
}

func (t *Tenant) MarkVerified() {
	t.isVerified = true
	t.updatedAt = time.Now()
}

// SetOwner records the new owner reference. Callers must change the
// owner and the two memberships in the same transaction.
func (t *Tenant) SetOwner(ownerID uuid.UUID) {
	t.ownerID = ownerID
	t.updatedAt = time.Now()
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]*Tenant, error)
	Create(ctx context.Context, t *Tenant) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) (*Tenant, error)
}
