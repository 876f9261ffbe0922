package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// UserRepository resolves the identities referenced by tickets and logs.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Role      int       `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      domain.UserRole(r.Role),
		CreatedAt: r.CreatedAt,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query, args, err := psql.Select("id", "name", "email", "role", "created_at").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var row userRow
	if err := pgxscan.Get(ctx, r.pool, &row, query, args...); err != nil {
		return nil, normalizeNotFound(err)
	}
	user := row.toDomain()
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	query, args, err := psql.Select("id", "name", "email", "role", "created_at").
		From("users").
		Where(sq.Eq{"role": role.Code()}).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
