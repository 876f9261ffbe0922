package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// URLResolver turns a storage path into a retrievable URL.
type URLResolver interface {
	PublicURL(ctx context.Context, path string) (string, error)
}

// HistoryQuery filters the history view. An empty Search matches every
// ticket; a non-positive Limit uses the configured default.
type HistoryQuery struct {
	Search string
	Limit  int
}

// HistoryPhoto is one attachment shown on a history row.
type HistoryPhoto struct {
	ID       string
	URL      string
	FileName string
	MimeType string
}

// HistoryRow is one log entry flattened with its ticket context.
type HistoryRow struct {
	LogID           string
	TicketID        string
	TicketName      string
	TicketCreatedAt time.Time
	UpdatedAt       time.Time
	ActorID         string
	Assignee        *string
	Note            string
	Status          domain.TicketStatus
	Priority        domain.TicketPriority
	Photos          []HistoryPhoto
	Changes         []domain.Change
	Degraded        bool
}

// HistoryService rebuilds the audit trail for display.
type HistoryService struct {
	tickets     repository.TicketRepository
	logs        repository.TicketLogRepository
	attachments repository.AttachmentRepository
	users       repository.UserRepository
	urls        URLResolver
	limits      config.HistoryConfig
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// HistoryDependencies bundles collaborators for the history service.
type HistoryDependencies struct {
	TicketRepo     repository.TicketRepository
	LogRepo        repository.TicketLogRepository
	AttachmentRepo repository.AttachmentRepository
	UserRepo       repository.UserRepository
	URLs           URLResolver
	Limits         config.HistoryConfig
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewHistoryService constructs the service.
func NewHistoryService(deps HistoryDependencies) *HistoryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limits := deps.Limits
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = 200
	}
	if limits.MaxLimit < limits.DefaultLimit {
		limits.MaxLimit = limits.DefaultLimit
	}
	return &HistoryService{
		tickets:     deps.TicketRepo,
		logs:        deps.LogRepo,
		attachments: deps.AttachmentRepo,
		users:       deps.UserRepo,
		urls:        deps.URLs,
		limits:      limits,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// GetHistory returns history rows newest first.
//
// A search that matches no ticket returns an empty list without reading any
// log entries. A log entry whose payload cannot be decoded is shown with its
// raw text as the note.
func (s *HistoryService) GetHistory(ctx context.Context, query HistoryQuery) ([]HistoryRow, error) {
	ctx, span := tracer.Start(ctx, "history.get")
	defer span.End()

	limit := s.resolveLimit(query.Limit)
	search := strings.TrimSpace(query.Search)
	span.SetAttributes(attribute.Int("history.limit", limit), attribute.Bool("history.search", search != ""))

	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{NameContains: search})
	if err != nil {
		return nil, errorutil.NewStorageError("list tickets", err, nil)
	}
	filter := repository.LogFilter{Limit: limit}
	if search != "" {
		if len(tickets) == 0 {
			span.AddEvent("no matching tickets")
			s.metrics.RecordHistory(0, 0)
			return []HistoryRow{}, nil
		}
		filter.TicketIDs = make([]string, 0, len(tickets))
		for _, ticket := range tickets {
			filter.TicketIDs = append(filter.TicketIDs, ticket.ID)
		}
	}
	byID := make(map[string]domain.Ticket, len(tickets))
	for _, ticket := range tickets {
		byID[ticket.ID] = ticket
	}

	entries, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, errorutil.NewStorageError("list log entries", err, nil)
	}
	photos, err := s.photosByLog(ctx, entries)
	if err != nil {
		return nil, err
	}

	rows := make([]HistoryRow, 0, len(entries))
	degraded := 0
	for _, entry := range entries {
		row := s.buildRow(entry, byID[entry.TicketID])
		if row.Degraded {
			degraded++
		}
		row.Photos = photos[entry.ID]
		if row.Photos == nil {
			row.Photos = []HistoryPhoto{}
		}
		rows = append(rows, row)
	}
	slices.SortStableFunc(rows, func(a, b HistoryRow) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	s.metrics.RecordHistory(len(rows), degraded)
	span.SetAttributes(attribute.Int("history.rows", len(rows)), attribute.Int("history.degraded", degraded))
	return rows, nil
}

func (s *HistoryService) resolveLimit(limit int) int {
	if limit <= 0 {
		return s.limits.DefaultLimit
	}
	if limit > s.limits.MaxLimit {
		return s.limits.MaxLimit
	}
	return limit
}

func (s *HistoryService) buildRow(entry domain.LogEntry, ticket domain.Ticket) HistoryRow {
	row := HistoryRow{
		LogID:           entry.ID,
		TicketID:        entry.TicketID,
		TicketName:      ticket.Name,
		TicketCreatedAt: ticket.CreatedAt,
		UpdatedAt:       entry.CreatedAt,
		ActorID:         entry.ActorID,
		Assignee:        ticket.AssigneeID,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		Changes:         []domain.Change{},
	}
	if entry.NewStatus.Valid() {
		row.Status = entry.NewStatus
	}

	payload, err := domain.DecodeLogPayload(entry.Message)
	if err != nil {
		s.logger.Warn("log payload degraded to raw text",
			zap.String("log_id", entry.ID),
			zap.String("ticket_id", entry.TicketID),
			zap.Error(errorutil.NewDeserializationError(err)))
		row.Note = entry.Message
		row.Degraded = true
		return row
	}

	row.Note = payload.Note
	if payload.NewName != nil && strings.TrimSpace(*payload.NewName) != "" {
		row.TicketName = *payload.NewName
	}
	// A recorded null assignee means the ticket was unassigned at the time.
	if payload.Has("new_assignee") {
		row.Assignee = domain.NormalizeAssignee(payload.NewAssignee)
	}
	if payload.NewPriority != nil && payload.NewPriority.Valid() {
		row.Priority = *payload.NewPriority
	}
	if payload.Changes != nil {
		row.Changes = payload.Changes
	}
	return row
}

// photosByLog loads every attachment for entries in one query. Attachments
// whose URL cannot be resolved are left out.
func (s *HistoryService) photosByLog(ctx context.Context, entries []domain.LogEntry) (map[string][]HistoryPhoto, error) {
	result := map[string][]HistoryPhoto{}
	if len(entries) == 0 || s.attachments == nil {
		return result, nil
	}
	logIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		logIDs = append(logIDs, entry.ID)
	}
	attachments, err := s.attachments.ListByLogIDs(ctx, logIDs)
	if err != nil {
		return nil, errorutil.NewStorageError("list attachments", err, nil)
	}
	for _, attachment := range attachments {
		photo := HistoryPhoto{
			ID:       attachment.ID,
			FileName: attachment.FileName,
			MimeType: attachment.MimeType,
		}
		if s.urls != nil {
			url, err := s.urls.PublicURL(ctx, attachment.StoragePath)
			if err != nil {
				s.logger.Warn("resolve attachment url",
					zap.String("attachment_id", attachment.ID),
					zap.String("storage_path", attachment.StoragePath),
					zap.Error(err))
				continue
			}
			photo.URL = url
		}
		result[attachment.LogID] = append(result[attachment.LogID], photo)
	}
	return result, nil
}

// assigneeNames maps technician ids to display names. Lookup failures leave
// the map empty so callers fall back to ids.
func (s *HistoryService) assigneeNames(ctx context.Context) map[string]string {
	names := map[string]string{}
	if s.users == nil {
		return names
	}
	users, err := s.users.ListByRole(ctx, domain.UserRoleTechnician)
	if err != nil {
		s.logger.Warn("load technician names", zap.Error(err))
		return names
	}
	for _, user := range users {
		names[user.ID] = user.Name
	}
	return names
}
