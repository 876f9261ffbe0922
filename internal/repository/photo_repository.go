package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// PhotoRepository reads and writes the per-ticket photo projection.
type PhotoRepository interface {
	Create(ctx context.Context, photo *domain.Photo) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Photo, error)
}

type photoRepository struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository constructs repository.
func NewPhotoRepository(pool *pgxpool.Pool) PhotoRepository {
	return &photoRepository{pool: pool}
}

type photoRow struct {
	ID          string    `db:"id"`
	TicketID    string    `db:"ticket_id"`
	URL         string    `db:"url"`
	StoragePath string    `db:"storage_path"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *photoRepository) Create(ctx context.Context, photo *domain.Photo) error {
	query, args, err := psql.Insert("ticket_photos").
		Columns("ticket_id", "url", "storage_path").
		Values(photo.TicketID, photo.URL, photo.StoragePath).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&photo.ID, &photo.CreatedAt)
}

func (r *photoRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Photo, error) {
	query, args, err := psql.Select("id", "ticket_id", "url", "storage_path", "created_at").
		From("ticket_photos").
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []photoRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.Photo, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.Photo(row))
	}
	return result, nil
}
