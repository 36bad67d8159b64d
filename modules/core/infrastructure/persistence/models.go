package persistence

import (
	"time"

	"github.com/google/uuid"

	"github.com/praxishq/praxis/modules/core/domain/aggregates/membership"
	"github.com/praxishq/praxis/modules/core/domain/aggregates/tenant"
	"github.com/praxishq/praxis/pkg/serrors"
)

var (
	ErrTenantNotFound     = serrors.NewError("CORE_TENANT_NOT_FOUND", "tenant not found", "")
	ErrMembershipNotFound = serrors.NewError("CORE_MEMBERSHIP_NOT_FOUND", "membership not found", "")
)

type tenantRow struct {
	ID         uuid.UUID
	Name       string
	Slug       string
	IsActive   bool
	IsVerified bool
	OwnerID    uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (row tenantRow) toDomain() *tenant.Tenant {
	return tenant.New(
		row.Name,
		row.OwnerID,
		tenant.WithID(row.ID),
		tenant.WithSlug(row.Slug),
		tenant.WithIsActive(row.IsActive),
		tenant.WithIsVerified(row.IsVerified),
		tenant.WithCreatedAt(row.CreatedAt),
		tenant.WithUpdatedAt(row.UpdatedAt),
	)
}

type membershipRow struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Role      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (row membershipRow) toDomain() *membership.Membership {
	return membership.New(
		row.TenantID,
		row.UserID,
		membership.Role(row.Role),
		membership.WithID(row.ID),
		membership.WithStatus(membership.Status(row.Status)),
		membership.WithCreatedAt(row.CreatedAt),
		membership.WithUpdatedAt(row.UpdatedAt),
	)
}
