package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/praxishq/praxis/modules/core/domain/aggregates/tenant"
	"github.com/praxishq/praxis/pkg/composables"
)

const (
	tenantFindQuery = `SELECT id, name, slug, is_active, is_verified, owner_id, created_at, updated_at FROM tenants`
)

type TenantRepository struct{}

func NewTenantRepository() tenant.Repository {
	return &TenantRepository{}
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	query := tenantFindQuery + " WHERE id = $1"
	tenants, err := r.queryTenants(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	query := tenantFindQuery + " WHERE slug = $1"
	tenants, err := r.queryTenants(ctx, query, slug)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (r *TenantRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check slug")
	}
	return exists, nil
}

func (r *TenantRepository) ListOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]*tenant.Tenant, error) {
	query := tenantFindQuery + " WHERE owner_id = $1 ORDER BY created_at"
	return r.queryTenants(ctx, query, ownerID)
}

func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tenants (id, name, slug, is_active, is_verified, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(
		ctx,
		query,
		t.ID(),
		t.Name(),
		t.Slug(),
		t.IsActive(),
		t.IsVerified(),
		t.OwnerID(),
		t.CreatedAt(),
		t.UpdatedAt(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create tenant")
	}
	return r.GetByID(ctx, t.ID())
}

func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE tenants
		SET name = $1, is_active = $2, is_verified = $3, owner_id = $4, updated_at = $5
		WHERE id = $6
	`
	if _, err := tx.Exec(
		ctx,
		query,
		t.Name(),
		t.IsActive(),
		t.IsVerified(),
		t.OwnerID(),
		t.UpdatedAt(),
		t.ID(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to update tenant")
	}
	return r.GetByID(ctx, t.ID())
}

func (r *TenantRepository) queryTenants(ctx context.Context, query string, args ...any) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tenants")
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		row := tenantRow{}
		if err := rows.Scan(
			&row.ID,
			&row.Name,
			&row.Slug,
			&row.IsActive,
			&row.IsVerified,
			&row.OwnerID,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tenant")
		}
		tenants = append(tenants, row.toDomain())
	}
	return tenants, rows.Err()
}
