package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forage_dispatches_total",
			Help: "Total number of query dispatches executed",
		},
		[]string{"engine", "action", "status"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forage_dispatch_duration_seconds",
			Help:    "Duration of a single query dispatch in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"engine", "action"},
	)

	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forage_rows_total",
			Help: "Total output rows produced across dispatches",
		},
		[]string{"engine", "action"},
	)
)

// RecordDispatch updates the metrics for one dispatched query.
func RecordDispatch(engine, action string, ok bool, rows int, dur time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	DispatchesTotal.WithLabelValues(engine, action, status).Inc()
	DispatchDuration.WithLabelValues(engine, action).Observe(dur.Seconds())
	if rows > 0 {
		RowsTotal.WithLabelValues(engine, action).Add(float64(rows))
	}
}

// Server exposes /metrics over HTTP for scrapes during long runs.
type Server struct {
	srv *http.Server
}

// Start begins listening on the given port.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
