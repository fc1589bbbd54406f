package event

import (
	"context"
	"encoding/json"

	"github.com/erp/budget/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every published domain event to the structured log.
// It subscribes to all event types.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an audit handler writing to logger
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// Handle implements shared.EventHandler
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.logger.Info("Domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	)
	return nil
}

// EventTypes implements shared.EventHandler
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
