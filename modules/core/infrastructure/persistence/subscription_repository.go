package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/praxishq/praxis/modules/core/authz"
	"github.com/praxishq/praxis/pkg/composables"
)

// SubscriptionRepository derives a tenant's subscription standing from
// the subscriptions table. Billing writes the rows; the core only
// reads the standing.
type SubscriptionRepository struct{}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{}
}

func (r *SubscriptionRepository) Standing(ctx context.Context, tenantID uuid.UUID) (authz.Standing, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return authz.Standing{}, err
	}

	query := `
		SELECT count(*), count(*) FILTER (WHERE status = 'active' AND (expires_at IS NULL OR expires_at > now()))
		FROM subscriptions
		WHERE tenant_id = $1
	`
	var total, active int64
	if err := tx.QueryRow(ctx, query, tenantID).Scan(&total, &active); err != nil {
		return authz.Standing{}, errors.Wrap(err, "failed to query subscription standing")
	}
	return authz.Standing{Exists: total > 0, Active: active > 0}, nil
}

// CreateTrial provisions an active trial subscription for a freshly
// registered tenant. Idempotent per tenant: a second call while any
// subscription row exists is a no-op.
func (r *SubscriptionRepository) CreateTrial(ctx context.Context, tenantID uuid.UUID, duration time.Duration) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO subscriptions (id, tenant_id, plan, status, created_at, expires_at)
		SELECT $1, $2, 'trial', 'active', now(), now() + $3
		WHERE NOT EXISTS (SELECT 1 FROM subscriptions WHERE tenant_id = $2)
	`
	if _, err := tx.Exec(ctx, query, uuid.New(), tenantID, duration); err != nil {
		return errors.Wrap(err, "failed to create trial subscription")
	}
	return nil
}
