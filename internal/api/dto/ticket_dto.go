package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=10000"`
	Priority    Code    `json:"priority" validate:"omitempty,ticket_priority"`
	Status      Code    `json:"status" validate:"omitempty,ticket_status"`
	AssignedTo  *string `json:"assigned_to"`
}

// UpdateTicketRequest is the dashboard's quick update. Keys that are absent
// are left unchanged; assigned_to sent as null or "" unassigns.
type UpdateTicketRequest struct {
	ID          string           `json:"id" validate:"required"`
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	Status      Optional[Code]   `json:"status"`
	Priority    Optional[Code]   `json:"priority"`
	AssignedTo  Optional[string] `json:"assigned_to"`
	Message     string           `json:"message" validate:"max=10000"`
}

// ToUpdate converts the request to a domain update.
func (r UpdateTicketRequest) ToUpdate() (domain.TicketUpdate, error) {
	var update domain.TicketUpdate
	if r.Name.Value != nil {
		update.Name = r.Name.Value
	}
	if r.Description.Value != nil {
		update.Description = r.Description.Value
	}
	if r.Status.Value != nil && *r.Status.Value != "" {
		status, err := domain.ParseTicketStatus(string(*r.Status.Value))
		if err != nil {
			return update, fieldError("status", err)
		}
		update.Status = &status
	}
	if r.Priority.Value != nil && *r.Priority.Value != "" {
		priority, err := domain.ParseTicketPriority(string(*r.Priority.Value))
		if err != nil {
			return update, fieldError("priority", err)
		}
		update.Priority = &priority
	}
	if r.AssignedTo.Set {
		assignee := ""
		if r.AssignedTo.Value != nil {
			assignee = *r.AssignedTo.Value
		}
		update.AssignedTo = &assignee
	}
	return update, nil
}

// UpdateFromForm reads the save_update multipart fields. Blank status,
// priority and name are treated as not sent; a present assigned_to is
// always applied, with "" meaning unassign.
func UpdateFromForm(values map[string][]string) (domain.TicketUpdate, error) {
	var update domain.TicketUpdate
	first := func(key string) (string, bool) {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	if raw, ok := first("status"); ok && strings.TrimSpace(raw) != "" {
		status, err := domain.ParseTicketStatus(raw)
		if err != nil {
			return update, fieldError("status", err)
		}
		update.Status = &status
	}
	if raw, ok := first("priority"); ok && strings.TrimSpace(raw) != "" {
		priority, err := domain.ParseTicketPriority(raw)
		if err != nil {
			return update, fieldError("priority", err)
		}
		update.Priority = &priority
	}
	if raw, ok := first("assigned_to"); ok {
		update.AssignedTo = &raw
	}
	if raw, ok := first("name"); ok && strings.TrimSpace(raw) != "" {
		update.Name = &raw
	}
	if raw, ok := first("description"); ok {
		update.Description = &raw
	}
	return update, nil
}

func fieldError(field string, err error) error {
	return apperrors.NewValidationError("invalid "+field, map[string]any{"field": field, "reason": err.Error()})
}

// TicketListQuery captures dashboard filters. Status and priority accept a
// comma separated list.
type TicketListQuery struct {
	Q        string `query:"q" validate:"max=200"`
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Assignee string `query:"assignee"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=1000"`
}

// HistoryQuery captures history search parameters.
type HistoryQuery struct {
	Q     string `query:"q" validate:"max=200"`
	Limit int    `query:"limit" validate:"omitempty,min=1"`
}

// TicketResponse is the dashboard's ticket shape.
type TicketResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      int       `json:"status"`
	StatusName  string    `json:"status_name"`
	Priority    int       `json:"priority"`
	PriorityKey string    `json:"priority_name"`
	AssignedTo  *string   `json:"assigned_to"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status.Code(),
		StatusName:  t.Status.String(),
		Priority:    t.Priority.Code(),
		PriorityKey: t.Priority.String(),
		AssignedTo:  t.AssigneeID,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// LogEntryResponse describes a written log entry.
type LogEntryResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	OldStatus int       `json:"old_status"`
	NewStatus int       `json:"new_status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewLogEntryResponse maps a log entry.
func NewLogEntryResponse(e domain.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:        e.ID,
		TicketID:  e.TicketID,
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		Message:   e.Message,
		OldStatus: e.OldStatus.Code(),
		NewStatus: e.NewStatus.Code(),
		CreatedAt: e.CreatedAt,
	}
}

// AttachmentOutcomeResponse reports one uploaded file.
type AttachmentOutcomeResponse struct {
	FileName     string `json:"file_name"`
	OK           bool   `json:"ok"`
	AttachmentID string `json:"attachment_id,omitempty"`
	StoragePath  string `json:"storage_path,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	URL          string `json:"url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PhotoResponse is one picture in the photo list.
type PhotoResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
