package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/praxishq/praxis/modules/core/domain/aggregates/membership"
	"github.com/praxishq/praxis/pkg/composables"
)

const (
	membershipFindQuery = `SELECT id, tenant_id, user_id, role, status, created_at, updated_at FROM memberships`
)

type MembershipRepository struct{}

func NewMembershipRepository() membership.Repository {
	return &MembershipRepository{}
}

func (r *MembershipRepository) GetByID(ctx context.Context, id uuid.UUID) (*membership.Membership, error) {
	query := membershipFindQuery + " WHERE id = $1"
	memberships, err := r.queryMemberships(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, ErrMembershipNotFound
	}
	return memberships[0], nil
}

func (r *MembershipRepository) GetActive(ctx context.Context, tenantID, userID uuid.UUID) (*membership.Membership, error) {
	query := membershipFindQuery + " WHERE tenant_id = $1 AND user_id = $2 AND status = $3"
	memberships, err := r.queryMemberships(ctx, query, tenantID, userID, membership.StatusActive)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, ErrMembershipNotFound
	}
	return memberships[0], nil
}

func (r *MembershipRepository) GetActiveOwner(ctx context.Context, tenantID uuid.UUID) (*membership.Membership, error) {
	query := membershipFindQuery + " WHERE tenant_id = $1 AND role = $2 AND status = $3"
	memberships, err := r.queryMemberships(ctx, query, tenantID, membership.RoleOwner, membership.StatusActive)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, ErrMembershipNotFound
	}
	return memberships[0], nil
}

func (r *MembershipRepository) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]*membership.Membership, error) {
	query := membershipFindQuery + " WHERE tenant_id = $1 AND status = $2 ORDER BY created_at"
	return r.queryMemberships(ctx, query, tenantID, membership.StatusActive)
}

func (r *MembershipRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*membership.Membership, error) {
	query := membershipFindQuery + " WHERE user_id = $1 AND status = $2 ORDER BY created_at"
	return r.queryMemberships(ctx, query, userID, membership.StatusActive)
}

func (r *MembershipRepository) Create(ctx context.Context, m *membership.Membership) (*membership.Membership, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO memberships (id, tenant_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(
		ctx,
		query,
		m.ID(),
		m.TenantID(),
		m.UserID(),
		m.Role(),
		m.Status(),
		m.CreatedAt(),
		m.UpdatedAt(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create membership")
	}
	return r.GetByID(ctx, m.ID())
}

func (r *MembershipRepository) Update(ctx context.Context, m *membership.Membership) (*membership.Membership, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE memberships
		SET role = $1, status = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := tx.Exec(ctx, query, m.Role(), m.Status(), m.UpdatedAt(), m.ID()); err != nil {
		return nil, errors.Wrap(err, "failed to update membership")
	}
	return r.GetByID(ctx, m.ID())
}

func (r *MembershipRepository) queryMemberships(ctx context.Context, query string, args ...any) ([]*membership.Membership, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query memberships")
	}
	defer rows.Close()

	var memberships []*membership.Membership
	for rows.Next() {
		row := membershipRow{}
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.UserID,
			&row.Role,
			&row.Status,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan membership")
		}
		memberships = append(memberships, row.toDomain())
	}
	return memberships, rows.Err()
}
