package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// LogFilter restricts log listing. A nil TicketIDs means every ticket; a
// non-nil empty slice matches nothing.
type LogFilter struct {
	TicketIDs []string
	Limit     int
}

// TicketLogRepository stores the append-only audit trail.
type TicketLogRepository interface {
	Create(ctx context.Context, entry *domain.LogEntry) error
	List(ctx context.Context, filter LogFilter) ([]domain.LogEntry, error)
}

type ticketLogRepository struct {
	pool *pgxpool.Pool
}

// NewTicketLogRepository builds repository.
func NewTicketLogRepository(pool *pgxpool.Pool) TicketLogRepository {
	return &ticketLogRepository{pool: pool}
}

type ticketLogRow struct {
	ID        string    `db:"id"`
	TicketID  string    `db:"ticket_id"`
	ActorID   string    `db:"actor_id"`
	Action    string    `db:"action"`
	Message   string    `db:"message"`
	OldStatus *int      `db:"old_status"`
	NewStatus *int      `db:"new_status"`
	CreatedAt time.Time `db:"created_at"`
}

func (r ticketLogRow) toDomain() domain.LogEntry {
	entry := domain.LogEntry{
		ID:        r.ID,
		TicketID:  r.TicketID,
		ActorID:   r.ActorID,
		Action:    domain.LogAction(r.Action),
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
	}
	if r.OldStatus != nil {
		entry.OldStatus = domain.TicketStatus(*r.OldStatus)
	}
	if r.NewStatus != nil {
		entry.NewStatus = domain.TicketStatus(*r.NewStatus)
	}
	return entry
}

func (r *ticketLogRepository) Create(ctx context.Context, entry *domain.LogEntry) error {
	if entry.Action == "" {
		entry.Action = domain.LogActionUpdate
	}
	query, args, err := psql.Insert("ticket_logs").
		Columns("ticket_id", "actor_id", "action", "message", "old_status", "new_status").
		Values(entry.TicketID, entry.ActorID, string(entry.Action), entry.Message, statusCode(entry.OldStatus), statusCode(entry.NewStatus)).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketLogRepository) List(ctx context.Context, filter LogFilter) ([]domain.LogEntry, error) {
	if filter.TicketIDs != nil && len(filter.TicketIDs) == 0 {
		return []domain.LogEntry{}, nil
	}
	builder := psql.Select("id", "ticket_id", "actor_id", "action", "message", "old_status", "new_status", "created_at").
		From("ticket_logs")
	if filter.TicketIDs != nil {
		builder = builder.Where(sq.Eq{"ticket_id": filter.TicketIDs})
	}
	builder = builder.OrderBy("created_at DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []ticketLogRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.LogEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func statusCode(status domain.TicketStatus) *int {
	if !status.Valid() {
		return nil
	}
	code := status.Code()
	return &code
}
