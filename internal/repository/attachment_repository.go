package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByLogIDs(ctx context.Context, logIDs []string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

type attachmentRow struct {
	ID          string    `db:"id"`
	TicketID    string    `db:"ticket_id"`
	LogID       string    `db:"log_id"`
	UploadedBy  string    `db:"uploaded_by"`
	StoragePath string    `db:"storage_path"`
	FileName    string    `db:"file_name"`
	MimeType    string    `db:"mime_type"`
	SizeBytes   int64     `db:"size_bytes"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	query, args, err := psql.Insert("ticket_attachments").
		Columns("ticket_id", "log_id", "uploaded_by", "storage_path", "file_name", "mime_type", "size_bytes").
		Values(attachment.TicketID, attachment.LogID, attachment.UploadedBy, attachment.StoragePath,
			attachment.FileName, attachment.MimeType, attachment.SizeBytes).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *attachmentRepository) ListByLogIDs(ctx context.Context, logIDs []string) ([]domain.Attachment, error) {
	if len(logIDs) == 0 {
		return []domain.Attachment{}, nil
	}
	query, args, err := psql.Select("id", "ticket_id", "log_id", "uploaded_by", "storage_path", "file_name", "mime_type", "size_bytes", "created_at").
		From("ticket_attachments").
		Where(sq.Eq{"log_id": logIDs}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []attachmentRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.Attachment, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.Attachment(row))
	}
	return result, nil
}
