// Package history persists a log of dispatched queries across runs.
// Recording is optional; when enabled, one record is written per query
// regardless of outcome.
package history

import (
	"context"
	"time"
)

// Record is one dispatched query.
type Record struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"` // 1-based position within the run
	Query     string    `json:"query"`
	Engine    string    `json:"engine"`
	Action    string    `json:"action"`
	URL       string    `json:"url"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows Query results. Zero fields match everything.
type Filter struct {
	RunID  string
	Engine string
	OK     *bool
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend stores and retrieves dispatch records. Query returns records
// newest first.
type Backend interface {
	Save(ctx context.Context, rec *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
