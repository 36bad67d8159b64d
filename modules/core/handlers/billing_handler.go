package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	coreevents "github.com/praxishq/praxis/modules/core/domain/events"
	"github.com/praxishq/praxis/pkg/eventbus"
)

// TrialProvisioner creates the initial subscription for a new tenant.
type TrialProvisioner interface {
	CreateTrial(ctx context.Context, tenantID uuid.UUID, duration time.Duration) error
}

// BillingHandler provisions a trial subscription when a tenant is
// created, so edit capabilities work out of the box until the trial
// lapses.
type BillingHandler struct {
	provisioner   TrialProvisioner
	trialDuration time.Duration
	log           *logrus.Logger
}

func NewBillingHandler(provisioner TrialProvisioner, trialDuration time.Duration, log *logrus.Logger) *BillingHandler {
	if trialDuration <= 0 {
		trialDuration = 14 * 24 * time.Hour
	}
	return &BillingHandler{
		provisioner:   provisioner,
		trialDuration: trialDuration,
		log:           log,
	}
}

func (h *BillingHandler) Register(bus eventbus.EventBus) {
	bus.Subscribe(coreevents.TopicTenantCreated, h.onTenantCreated, PriorityDomain)
}

func (h *BillingHandler) onTenantCreated(ctx context.Context, e eventbus.Event) error {
	tenantID, err := payloadUUID(e, "tenant_id")
	if err != nil {
		return err
	}
	if err := h.provisioner.CreateTrial(ctx, tenantID, h.trialDuration); err != nil {
		return fmt.Errorf("billing: provision trial for %s: %w", tenantID, err)
	}
	h.log.WithField("tenant_id", tenantID.String()).Info("billing: trial subscription provisioned")
	return nil
}

func payloadUUID(e eventbus.Event, key string) (uuid.UUID, error) {
	raw, ok := e.Payload[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("event %q payload missing %q", e.Name, key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("event %q payload %q: %w", e.Name, key, err)
	}
	return id, nil
}
