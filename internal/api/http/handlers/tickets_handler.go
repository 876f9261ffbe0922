package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// TicketWorkflow is the ticket service as the handlers use it.
type TicketWorkflow interface {
	CreateTicket(ctx context.Context, actorID string, input service.TicketCreateInput) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter service.TicketListFilter) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListPhotos(ctx context.Context, ticketID string) ([]domain.Photo, error)
	SaveUpdate(ctx context.Context, ticketID, actorID string, update domain.TicketUpdate, note string, files []service.FileUpload) (*service.SaveUpdateResult, error)
}

// HistoryReader is the history service as the handlers use it.
type HistoryReader interface {
	GetHistory(ctx context.Context, query service.HistoryQuery) ([]service.HistoryRow, error)
	ExportHistory(ctx context.Context, query service.HistoryQuery) ([]byte, error)
}

// TicketsHandler serves the manager and technician dashboards.
type TicketsHandler struct {
	tickets   TicketWorkflow
	history   HistoryReader
	validator *dto.Validator
	upload    config.UploadConfig
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketWorkflow, history HistoryReader, validator *dto.Validator, upload config.UploadConfig) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, history: history, validator: validator, upload: upload}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var query dto.TicketListQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := h.validator.Validate(query); err != nil {
		return err
	}
	filter := service.TicketListFilter{Search: strings.TrimSpace(query.Q), Limit: query.Limit}
	for _, part := range splitList(query.Status) {
		status, err := domain.ParseTicketStatus(part)
		if err != nil {
			return apperrors.NewValidationError("invalid status filter", map[string]any{"value": part})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, part := range splitList(query.Priority) {
		priority, err := domain.ParseTicketPriority(part)
		if err != nil {
			return apperrors.NewValidationError("invalid priority filter", map[string]any{"value": part})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if assignee := strings.TrimSpace(query.Assignee); assignee != "" {
		filter.AssigneeID = &assignee
	}

	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, dto.NewTicketResponse(ticket))
	}
	return c.JSON(fiber.Map{"success": true, "tickets": items})
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Validate(req); err != nil {
		return err
	}
	input := service.TicketCreateInput{
		Name:        req.Name,
		Description: req.Description,
		AssigneeID:  req.AssignedTo,
	}
	// Both codes already passed the validator's enum rules.
	if req.Priority != "" {
		input.Priority, _ = domain.ParseTicketPriority(string(req.Priority))
	}
	if req.Status != "" {
		input.Status, _ = domain.ParseTicketStatus(string(req.Status))
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "ticket": dto.NewTicketResponse(*ticket)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "ticket": dto.NewTicketResponse(*ticket)})
}

// UpdateTicket PUT /api/tickets/update. The JSON quick update goes through
// the same logged update as save_update, without files.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Validate(req); err != nil {
		return err
	}
	update, err := req.ToUpdate()
	if err != nil {
		return err
	}
	result, err := h.tickets.SaveUpdate(c.UserContext(), req.ID, principal.User.ID, update, req.Message, nil)
	if err != nil {
		return err
	}
	return c.JSON(saveUpdateResponse(result))
}

// SaveUpdate POST /api/tickets/save_update (multipart/form-data).
func (h *TicketsHandler) SaveUpdate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form required", nil)
	}
	ticketID := strings.TrimSpace(firstValue(form.Value, "ticket_id"))
	if ticketID == "" {
		return apperrors.NewValidationError("ticket_id is required", map[string]any{"field": "ticket_id"})
	}
	update, err := dto.UpdateFromForm(form.Value)
	if err != nil {
		return err
	}
	files, err := h.readFiles(form.File["files"])
	if err != nil {
		return err
	}

	result, err := h.tickets.SaveUpdate(c.UserContext(), ticketID, principal.User.ID, update, firstValue(form.Value, "message"), files)
	if err != nil {
		return err
	}
	return c.JSON(saveUpdateResponse(result))
}

// ListPhotos GET /api/photos/:ticketId.
func (h *TicketsHandler) ListPhotos(c *fiber.Ctx) error {
	photos, err := h.tickets.ListPhotos(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	items := make([]dto.PhotoResponse, 0, len(photos))
	for _, photo := range photos {
		items = append(items, dto.PhotoResponse{ID: photo.ID, URL: photo.URL, CreatedAt: photo.CreatedAt})
	}
	return c.JSON(fiber.Map{"success": true, "photos": items})
}

// History GET /api/tickets/history?q=&limit=.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	query, err := h.historyQuery(c)
	if err != nil {
		return err
	}
	rows, err := h.history.GetHistory(c.UserContext(), query)
	if err != nil {
		return err
	}
	entries := make([]dto.HistoryRowResponse, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dto.NewHistoryRowResponse(row))
	}
	return c.JSON(fiber.Map{"success": true, "entries": entries})
}

// ExportHistory GET /api/tickets/history/export?q=&limit=.
func (h *TicketsHandler) ExportHistory(c *fiber.Ctx) error {
	query, err := h.historyQuery(c)
	if err != nil {
		return err
	}
	workbook, err := h.history.ExportHistory(c.UserContext(), query)
	if err != nil {
		return err
	}
	c.Attachment("ticket-history.xlsx")
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(workbook)
}

func (h *TicketsHandler) historyQuery(c *fiber.Ctx) (service.HistoryQuery, error) {
	var query dto.HistoryQuery
	if err := c.QueryParser(&query); err != nil {
		return service.HistoryQuery{}, apperrors.NewValidationError("invalid query", nil)
	}
	if err := h.validator.Validate(query); err != nil {
		return service.HistoryQuery{}, err
	}
	return service.HistoryQuery{Search: strings.TrimSpace(query.Q), Limit: query.Limit}, nil
}

func (h *TicketsHandler) readFiles(headers []*multipart.FileHeader) ([]service.FileUpload, error) {
	if h.upload.MaxFiles > 0 && len(headers) > h.upload.MaxFiles {
		return nil, apperrors.NewValidationError("too many files", map[string]any{"max_files": h.upload.MaxFiles, "received": len(headers)})
	}
	files := make([]service.FileUpload, 0, len(headers))
	for _, header := range headers {
		if h.upload.MaxFileBytes > 0 && header.Size > h.upload.MaxFileBytes {
			return nil, apperrors.NewValidationError("file too large", map[string]any{
				"file_name": header.Filename,
				"max_bytes": h.upload.MaxFileBytes,
			})
		}
		data, err := readFileHeader(header)
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable file", map[string]any{"file_name": header.Filename})
		}
		files = append(files, service.FileUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Data:        data,
		})
	}
	return files, nil
}

func readFileHeader(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func saveUpdateResponse(result *service.SaveUpdateResult) fiber.Map {
	uploads := make([]dto.AttachmentOutcomeResponse, 0, len(result.Uploaded))
	failed := 0
	for _, outcome := range result.Uploaded {
		resp := dto.AttachmentOutcomeResponse{FileName: outcome.FileName, OK: outcome.OK(), URL: outcome.URL}
		if outcome.Attachment != nil {
			resp.AttachmentID = outcome.Attachment.ID
			resp.StoragePath = outcome.Attachment.StoragePath
			resp.MimeType = outcome.Attachment.MimeType
			resp.SizeBytes = outcome.Attachment.SizeBytes
		}
		if outcome.Err != nil {
			failed++
			resp.Error = apperrors.ToDomainError(outcome.Err).Message
		}
		uploads = append(uploads, resp)
	}
	changes := result.Payload.Changes
	if changes == nil {
		changes = []domain.Change{}
	}
	body := fiber.Map{
		"success":     true,
		"stage":       result.Stage,
		"log":         dto.NewLogEntryResponse(result.Log),
		"changes":     changes,
		"attachments": uploads,
		"failed":      failed,
	}
	if result.Ticket != nil {
		body["ticket"] = dto.NewTicketResponse(*result.Ticket)
	}
	return body
}

func firstValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
