package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/forage/internal/history"
	_ "modernc.org/sqlite"
)

var _ history.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
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
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatches_run ON dispatches(run_id);
`

// New opens (creating if needed) a SQLite-backed history at the DSN.
func New(dsn string) (history.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *history.Record) error {
	const q = `
	INSERT INTO dispatches (id, run_id, seq, query, engine, action, url, ok, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := b.db.ExecContext(ctx, q,
		rec.ID, rec.RunID, rec.Seq, rec.Query, rec.Engine, rec.Action,
		rec.URL, rec.OK, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	q := `SELECT id, run_id, seq, query, engine, action, url, ok, error, created_at FROM dispatches WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		q += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Engine != "" {
		q += ` AND engine = ?`
		args = append(args, filter.Engine)
	}
	if filter.OK != nil {
		q += ` AND ok = ?`
		args = append(args, *filter.OK)
	}
	if filter.Since != nil {
		q += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	q += ` ORDER BY created_at DESC, seq DESC`

	// OFFSET is only valid after a LIMIT clause; -1 means unlimited.
	switch {
	case filter.Limit > 0:
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		q += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, q, args...)
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

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
