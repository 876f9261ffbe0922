package dto

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/service"
)

// HistoryPhotoResponse is an attachment on a history row.
type HistoryPhotoResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

// HistoryRowResponse is the history view's row shape.
type HistoryRowResponse struct {
	LogID           string                 `json:"log_id"`
	TicketID        string                 `json:"ticket_id"`
	TicketName      string                 `json:"ticket_name"`
	TicketCreatedAt *time.Time             `json:"ticket_created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	ActorID         string                 `json:"actor_id"`
	Assignee        *string                `json:"assignee"`
	Update          string                 `json:"update"`
	Status          int                    `json:"status"`
	Priority        int                    `json:"priority"`
	Photos          []HistoryPhotoResponse `json:"photos"`
	Changes         []domain.Change        `json:"changes"`
	Degraded        bool                   `json:"degraded,omitempty"`
}

// NewHistoryRowResponse maps a history row.
func NewHistoryRowResponse(row service.HistoryRow) HistoryRowResponse {
	resp := HistoryRowResponse{
		LogID:      row.LogID,
		TicketID:   row.TicketID,
		TicketName: row.TicketName,
		UpdatedAt:  row.UpdatedAt,
		ActorID:    row.ActorID,
		Assignee:   row.Assignee,
		Update:     row.Note,
		Status:     row.Status.Code(),
		Priority:   row.Priority.Code(),
		Photos:     make([]HistoryPhotoResponse, 0, len(row.Photos)),
		Changes:    row.Changes,
		Degraded:   row.Degraded,
	}
	if !row.TicketCreatedAt.IsZero() {
		created := row.TicketCreatedAt
		resp.TicketCreatedAt = &created
	}
	for _, photo := range row.Photos {
		resp.Photos = append(resp.Photos, HistoryPhotoResponse(photo))
	}
	if resp.Changes == nil {
		resp.Changes = []domain.Change{}
	}
	return resp
}
