package handlers

import (
	"context"

	"github.com/sirupsen/logrus"

	coreevents "github.com/praxishq/praxis/modules/core/domain/events"
	"github.com/praxishq/praxis/pkg/eventbus"
)

// Listener priorities. Audit runs before domain consumers so the trail
// records the event even when a consumer fails.
const (
	PriorityAudit  = 100
	PriorityDomain = 0
)

var coreTopics = []string{
	coreevents.TopicTenantCreated,
	coreevents.TopicTenantActivated,
	coreevents.TopicTenantVerified,
	coreevents.TopicMemberAdded,
	coreevents.TopicMemberRemoved,
	coreevents.TopicMemberLeft,
	coreevents.TopicMemberRoleChanged,
	coreevents.TopicOwnershipTransferred,
}

// AuditHandler writes one structured log line per core event.
type AuditHandler struct {
	log *logrus.Logger
}

func NewAuditHandler(log *logrus.Logger) *AuditHandler {
	return &AuditHandler{log: log}
}

func (h *AuditHandler) Register(bus eventbus.EventBus) {
	for _, topic := range coreTopics {
		bus.Subscribe(topic, h.handle, PriorityAudit)
	}
}

func (h *AuditHandler) handle(_ context.Context, e eventbus.Event) error {
	h.log.WithFields(logrus.Fields{
		"event":      e.Name,
		"event_id":   e.ID.String(),
		"actor_id":   e.ActorID.String(),
		"subject_id": e.SubjectID.String(),
		"payload":    e.Payload,
	}).Info("audit: core event")
	return nil
}
