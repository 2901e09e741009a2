package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/forage/internal/history"
	"github.com/FranksOps/forage/internal/history/ndjson"
	"github.com/FranksOps/forage/internal/history/postgres"
	"github.com/FranksOps/forage/internal/history/sqlite"
)

// openHistory picks a backend from the DSN shape: postgres URLs go to
// the pgx pool, *.ndjson and *.jsonl paths to the append-only file
// backend, anything else is treated as an SQLite database path.
func openHistory(ctx context.Context, dsn string) (history.Backend, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case strings.HasSuffix(dsn, ".ndjson"), strings.HasSuffix(dsn, ".jsonl"):
		return ndjson.New(dsn)
	default:
		return sqlite.New(dsn)
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		dsn      string
		runID    string
		engineID string
		failed   bool
		since    string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded queries from earlier runs",
		Example: `  forage history --history forage.db
  forage history --history forage.db --engine google --failed
  forage history --history runs.ndjson --since 2026-08-01 --json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("--history is required")
			}

			ctx := cmd.Context()
			backend, err := openHistory(ctx, dsn)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer backend.Close()

			filter := history.Filter{
				RunID:  runID,
				Engine: engineID,
				Limit:  limit,
			}
			if failed {
				ok := false
				filter.OK = &ok
			}
			if since != "" {
				t, err := time.Parse(dateLayout, since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				filter.Since = &t
			}

			records, err := backend.Query(ctx, filter)
			if err != nil {
				return fmt.Errorf("query history: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			for _, rec := range records {
				status := "ok"
				if !rec.OK {
					status = "failed: " + rec.Error
				}
				fmt.Fprintf(out, "%s  %-12s %-22s %q  %s\n",
					rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					rec.Engine, rec.Action, rec.Query, status)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dsn, "history", "", "history location (same forms as the run flag)")
	f.StringVar(&runID, "run", "", "only records from this run")
	f.StringVar(&engineID, "engine", "", "only records for this engine")
	f.BoolVar(&failed, "failed", false, "only failed queries")
	f.StringVar(&since, "since", "", "only records on or after this date, YYYY-MM-DD")
	f.IntVar(&limit, "limit", 50, "maximum records to print (0 = all)")
	f.BoolVar(&asJSON, "json", false, "print records as JSON")

	return cmd
}
