package repository

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// normalizeNotFound unwraps scany's empty-result error to pgx.ErrNoRows.
func normalizeNotFound(err error) error {
	if err != nil && pgxscan.NotFound(err) {
		return pgx.ErrNoRows
	}
	return err
}
