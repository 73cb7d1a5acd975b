package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Run executes the builder's data and count queries, scanning rows into T by column name.
// Columns absent from a projection leave the corresponding field zero.
func Run[T any](ctx context.Context, q Querier, b *Builder) ([]T, Meta, error) {
	sql, args := b.SelectSQL()
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("query: select: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, Meta{}, fmt.Errorf("query: scan: %w", err)
	}

	countSQL, countArgs := b.CountSQL()
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, Meta{}, fmt.Errorf("query: count: %w", err)
	}
	return items, b.Meta(total), nil
}
