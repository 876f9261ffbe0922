package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/events"
)

// NotificationService writes an operator-facing log line for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventTicketAttachmentFailed, n.handleAttachmentFailed)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logger.Info("TicketCreated",
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketUpdated(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID),
	}
	if payload, ok := event.Payload.(events.TicketUpdatedPayload); ok {
		fields = append(fields,
			zap.String("log_id", payload.LogID),
			zap.Int("changes", len(payload.Changes)),
			zap.Int("attachments", payload.Attachments),
			zap.Int("failed_attachments", payload.FailedAttachments))
		if payload.OldStatus != payload.NewStatus {
			fields = append(fields, zap.Int("old_status", payload.OldStatus), zap.Int("new_status", payload.NewStatus))
		}
	}
	n.logger.Info("TicketUpdated", fields...)
	return nil
}

func (n *NotificationService) handleAttachmentFailed(_ context.Context, event events.Event) error {
	n.logger.Warn("TicketAttachmentFailed",
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}
