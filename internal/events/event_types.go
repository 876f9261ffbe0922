package events

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketUpdated          EventType = "ticket_updated"
	EventTicketAttachmentFailed EventType = "ticket_attachment_failed"
)

// AllEventTypes lists every type a relay forwards.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketAttachmentFailed,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Name       string  `json:"name"`
	Priority   int     `json:"priority"`
	Status     int     `json:"status"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// TicketUpdatedPayload summarizes one saved update.
type TicketUpdatedPayload struct {
	LogID             string          `json:"log_id"`
	OldStatus         int             `json:"old_status"`
	NewStatus         int             `json:"new_status"`
	Changes           []domain.Change `json:"changes"`
	Attachments       int             `json:"attachments"`
	FailedAttachments int             `json:"failed_attachments"`
}

// AttachmentFailedPayload reports one file that could not be stored.
type AttachmentFailedPayload struct {
	LogID    string `json:"log_id"`
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}
