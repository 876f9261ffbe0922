package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// TicketFilter captures dashboard and history search parameters.
type TicketFilter struct {
	NameContains string
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	AssigneeID   *string
	Limit        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ApplyUpdate(ctx context.Context, id string, update domain.TicketUpdate) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

var ticketColumns = []string{
	"id", "name", "description", "priority", "status", "assigned_to", "created_by", "created_at", "updated_at",
}

type ticketRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Priority    int       `db:"priority"`
	Status      int       `db:"status"`
	AssignedTo  *string   `db:"assigned_to"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r ticketRow) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Priority:    domain.TicketPriority(r.Priority),
		Status:      domain.TicketStatus(r.Status),
		AssigneeID:  r.AssignedTo,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	query, args, err := psql.Insert("tickets").
		Columns("name", "description", "priority", "status", "assigned_to", "created_by").
		Values(ticket.Name, ticket.Description, ticket.Priority.Code(), ticket.Status.Code(), ticket.AssigneeID, ticket.CreatedBy).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query, args, err := psql.Select(ticketColumns...).From("tickets").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var row ticketRow
	if err := pgxscan.Get(ctx, r.pool, &row, query, args...); err != nil {
		return nil, normalizeNotFound(err)
	}
	ticket := row.toDomain()
	return &ticket, nil
}

// ApplyUpdate writes only the fields present in update. An empty update is a
// no-op.
func (r *ticketRepository) ApplyUpdate(ctx context.Context, id string, update domain.TicketUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	set := map[string]any{}
	if update.Name != nil {
		set["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Status != nil {
		set["status"] = update.Status.Code()
	}
	if update.Priority != nil {
		set["priority"] = update.Priority.Code()
	}
	if update.AssignedTo != nil {
		set["assigned_to"] = domain.NormalizeAssignee(update.AssignedTo)
	}

	query, args, err := psql.Update("tickets").
		SetMap(set).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	builder := psql.Select(ticketColumns...).From("tickets")

	if term := strings.TrimSpace(filter.NameContains); term != "" {
		builder = builder.Where(sq.ILike{"name": "%" + escapeLike(term) + "%"})
	}
	if len(filter.Statuses) > 0 {
		codes := make([]int, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			codes = append(codes, status.Code())
		}
		builder = builder.Where(sq.Eq{"status": codes})
	}
	if len(filter.Priorities) > 0 {
		codes := make([]int, 0, len(filter.Priorities))
		for _, priority := range filter.Priorities {
			codes = append(codes, priority.Code())
		}
		builder = builder.Where(sq.Eq{"priority": codes})
	}
	if filter.AssigneeID != nil {
		builder = builder.Where(sq.Eq{"assigned_to": *filter.AssigneeID})
	}
	builder = builder.OrderBy("created_at DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []ticketRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.Ticket, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
