package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// SaveStage is the last step a SaveUpdate call completed.
type SaveStage string

const (
	StagePending              SaveStage = "pending"
	StageLogged               SaveStage = "logged"
	StageMutated              SaveStage = "mutated"
	StageAttachmentsProcessed SaveStage = "attachments_processed"
	StageComplete             SaveStage = "complete"
)

// SaveUpdateResult is returned by SaveUpdate. When the ticket mutation
// fails it is returned alongside the error with Stage == StageLogged so the
// orphaned log entry can be reconciled later.
type SaveUpdateResult struct {
	Log      domain.LogEntry
	Payload  domain.LogPayload
	Ticket   *domain.Ticket
	Uploaded []AttachmentOutcome
	Stage    SaveStage
}

// Failed returns the outcomes whose file could not be stored.
func (r *SaveUpdateResult) Failed() []AttachmentOutcome {
	var failed []AttachmentOutcome
	for _, outcome := range r.Uploaded {
		if !outcome.OK() {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	logs       repository.TicketLogRepository
	photos     repository.PhotoRepository
	pipeline   *AttachmentPipeline
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	LogRepo    repository.TicketLogRepository
	PhotoRepo  repository.PhotoRepository
	Pipeline   *AttachmentPipeline
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Name        string
	Description string
	Priority    domain.TicketPriority
	Status      domain.TicketStatus
	AssigneeID  *string
}

// TicketListFilter describes dashboard listing filters.
type TicketListFilter struct {
	Search     string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *string
	Limit      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		logs:       deps.LogRepo,
		photos:     deps.PhotoRepo,
		pipeline:   deps.Pipeline,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateTicket stores a new ticket. Creation is not an update, so no log
// entry is written.
func (s *TicketService) CreateTicket(ctx context.Context, actorID string, input TicketCreateInput) (*domain.Ticket, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errorutil.NewValidationError("ticket name is required", map[string]any{"field": "name"})
	}
	ticket := &domain.Ticket{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Priority:    input.Priority,
		Status:      input.Status,
		AssigneeID:  domain.NormalizeAssignee(input.AssigneeID),
		CreatedBy:   actorID,
	}
	if ticket.Priority == 0 {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Status == 0 {
		ticket.Status = domain.TicketStatusOpen
	}
	if !ticket.Priority.Valid() || !ticket.Status.Valid() {
		return nil, errorutil.NewValidationError("invalid status or priority", map[string]any{
			"status":   ticket.Status.Code(),
			"priority": ticket.Priority.Code(),
		})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, errorutil.NewStorageError("create ticket", err, nil)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketCreatedPayload{
			Name:       ticket.Name,
			Priority:   ticket.Priority.Code(),
			Status:     ticket.Status.Code(),
			AssigneeID: ticket.AssigneeID,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets matching filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		NameContains: filter.Search,
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		AssigneeID:   filter.AssigneeID,
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, errorutil.NewStorageError("list tickets", err, nil)
	}
	return tickets, nil
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.loadError(ticketID, err)
	}
	return ticket, nil
}

// ListPhotos returns the photo projection for a ticket.
func (s *TicketService) ListPhotos(ctx context.Context, ticketID string) ([]domain.Photo, error) {
	photos, err := s.photos.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, errorutil.NewStorageError("list photos", err, map[string]any{"ticket_id": ticketID})
	}
	return photos, nil
}

// SaveUpdate records and applies one update to a ticket:
// load, detect changes, write the log entry, mutate the ticket, then store
// attachments against the new log entry.
//
// Failures before the log entry exists return a nil result. A failed
// mutation returns the written log entry together with the error and skips
// attachments. Attachment failures are reported per file in the result.
func (s *TicketService) SaveUpdate(ctx context.Context, ticketID, actorID string, update domain.TicketUpdate, note string, files []FileUpload) (*SaveUpdateResult, error) {
	ctx, span := tracer.Start(ctx, "ticket.save_update", trace.WithAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	if err := validateUpdate(update); err != nil {
		return nil, s.failSpan(span, err)
	}

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.failSpan(span, s.loadError(ticketID, err))
	}

	payload, oldStatus, newStatus := DetectChanges(*current, update, note)
	message, err := payload.Encode()
	if err != nil {
		return nil, s.failSpan(span, errorutil.NewInternalError(err))
	}

	entry := domain.LogEntry{
		TicketID:  ticketID,
		ActorID:   actorID,
		Action:    domain.LogActionUpdate,
		Message:   message,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
	if err := s.logs.Create(ctx, &entry); err != nil {
		s.metrics.RecordUpdate(string(StagePending))
		return nil, s.failSpan(span, errorutil.NewStorageError("write log entry", err, map[string]any{"ticket_id": ticketID}))
	}
	result := &SaveUpdateResult{Log: entry, Payload: payload, Stage: StageLogged}
	span.AddEvent("logged", trace.WithAttributes(attribute.String("log.id", entry.ID)))

	if err := s.tickets.ApplyUpdate(ctx, ticketID, update); err != nil {
		s.metrics.RecordUpdate(string(StageLogged))
		s.logger.Error("ticket mutation failed after log entry was written",
			zap.String("ticket_id", ticketID),
			zap.String("log_id", entry.ID),
			zap.Error(err))
		return result, s.failSpan(span, errorutil.NewStorageError("apply ticket update", err, map[string]any{
			"ticket_id": ticketID,
			"log_id":    entry.ID,
		}))
	}
	updated := update.Apply(*current)
	result.Ticket = &updated
	result.Stage = StageMutated
	span.AddEvent("mutated")

	if len(files) > 0 && s.pipeline != nil {
		result.Uploaded = s.pipeline.Process(ctx, ticketID, entry.ID, actorID, files)
	} else {
		result.Uploaded = []AttachmentOutcome{}
	}
	result.Stage = StageAttachmentsProcessed

	failed := result.Failed()
	for _, outcome := range failed {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAttachmentFailed,
			TicketID: ticketID,
			ActorID:  actorID,
			Payload: events.AttachmentFailedPayload{
				LogID:    entry.ID,
				FileName: outcome.FileName,
				Reason:   outcome.Err.Error(),
			},
		})
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload: events.TicketUpdatedPayload{
			LogID:             entry.ID,
			OldStatus:         oldStatus.Code(),
			NewStatus:         newStatus.Code(),
			Changes:           payload.Changes,
			Attachments:       len(result.Uploaded) - len(failed),
			FailedAttachments: len(failed),
		},
	})

	result.Stage = StageComplete
	s.metrics.RecordUpdate(string(StageComplete))
	span.SetAttributes(attribute.Int("attachments.failed", len(failed)))
	return result, nil
}

func validateUpdate(update domain.TicketUpdate) error {
	if update.Status != nil && !update.Status.Valid() {
		return errorutil.NewValidationError("invalid status", map[string]any{"status": update.Status.Code()})
	}
	if update.Priority != nil && !update.Priority.Valid() {
		return errorutil.NewValidationError("invalid priority", map[string]any{"priority": update.Priority.Code()})
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return errorutil.NewValidationError("ticket name cannot be empty", map[string]any{"field": "name"})
	}
	return nil
}

func (s *TicketService) loadError(ticketID string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return errorutil.NewStorageError("load ticket", err, map[string]any{"ticket_id": ticketID})
}

func (s *TicketService) failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
