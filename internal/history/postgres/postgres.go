package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/FranksOps/forage/internal/history"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ history.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	query TEXT NOT NULL,
	engine TEXT NOT NULL,
	action TEXT NOT NULL,
	url TEXT NOT NULL,
	ok BOOLEAN NOT NULL,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatches_run ON dispatches(run_id);
`

// New connects to Postgres and ensures the dispatch table exists.
func New(ctx context.Context, dsn string) (history.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *history.Record) error {
	const q = `
	INSERT INTO dispatches (id, run_id, seq, query, engine, action, url, ok, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := b.pool.Exec(ctx, q,
		rec.ID, rec.RunID, rec.Seq, rec.Query, rec.Engine, rec.Action,
		rec.URL, rec.OK, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, run_id, seq, query, engine, action, url, ok, error, created_at FROM dispatches WHERE TRUE`)
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.RunID != "" {
		sb.WriteString(` AND run_id = ` + arg(filter.RunID))
	}
	if filter.Engine != "" {
		sb.WriteString(` AND engine = ` + arg(filter.Engine))
	}
	if filter.OK != nil {
		sb.WriteString(` AND ok = ` + arg(*filter.OK))
	}
	if filter.Since != nil {
		sb.WriteString(` AND created_at >= ` + arg(*filter.Since))
	}

	sb.WriteString(` ORDER BY created_at DESC, seq DESC`)

	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ` + arg(filter.Limit))
	}
	if filter.Offset > 0 {
		sb.WriteString(` OFFSET ` + arg(filter.Offset))
	}

	rows, err := b.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*history.Record
	for rows.Next() {
		var r history.Record
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Seq, &r.Query, &r.Engine, &r.Action,
			&r.URL, &r.OK, &r.Error, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
