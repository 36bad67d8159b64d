package handlers

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/praxishq/praxis/modules/core/domain/aggregates/tenant"
	coreevents "github.com/praxishq/praxis/modules/core/domain/events"
	"github.com/praxishq/praxis/pkg/eventbus"
)

// VerificationHandler watches ownership changes and flags transfers on
// unverified tenants for manual review.
type VerificationHandler struct {
	tenants tenant.Repository
	log     *logrus.Logger
}

func NewVerificationHandler(tenants tenant.Repository, log *logrus.Logger) *VerificationHandler {
	return &VerificationHandler{tenants: tenants, log: log}
}

func (h *VerificationHandler) Register(bus eventbus.EventBus) {
	bus.Subscribe(coreevents.TopicOwnershipTransferred, h.onOwnershipTransferred, PriorityDomain)
}

func (h *VerificationHandler) onOwnershipTransferred(ctx context.Context, e eventbus.Event) error {
	tenantID, err := payloadUUID(e, "tenant_id")
	if err != nil {
		return err
	}
	t, err := h.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if !t.IsVerified() {
		h.log.WithFields(logrus.Fields{
			"tenant_id": tenantID.String(),
			"actor_id":  e.ActorID.String(),
		}).Warn("verification: ownership transferred on unverified tenant")
	}
	return nil
}
