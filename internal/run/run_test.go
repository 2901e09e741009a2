package run

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/forage/internal/dispatch"
	"github.com/FranksOps/forage/internal/engine"
	"github.com/FranksOps/forage/internal/history"
	"github.com/FranksOps/forage/internal/session"
	"github.com/FranksOps/forage/internal/timefilter"
	"github.com/FranksOps/forage/pkg/launcher"
)

func baseConfig() Config {
	return Config{
		Queries: []string{"cats", "dogs"},
		Engine:  "google",
		Action:  "print_url",
	}
}

func TestValidateRejectsBadCombinations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "queries and source together",
			mutate: func(c *Config) { c.QueriesFrom = "list.txt" },
			want:   ErrConfig,
		},
		{
			name:   "no query source at all",
			mutate: func(c *Config) { c.Queries = nil },
			want:   ErrConfig,
		},
		{
			name: "fixed and random delay together",
			mutate: func(c *Config) {
				c.Delay = time.Second
				c.MinDelay = time.Second
				c.MaxDelay = 2 * time.Second
			},
			want: ErrConfig,
		},
		{
			name:   "min delay without max",
			mutate: func(c *Config) { c.MinDelay = time.Second },
			want:   ErrConfig,
		},
		{
			name:   "negative delay",
			mutate: func(c *Config) { c.Delay = -time.Second },
			want:   ErrConfig,
		},
		{
			name: "relative and range time filters together",
			mutate: func(c *Config) {
				c.TimePast = "week"
				c.TimeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
				c.TimeEnd = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			},
			want: ErrConfig,
		},
		{
			name:   "time start without end",
			mutate: func(c *Config) { c.TimeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
			want:   ErrConfig,
		},
		{
			name:   "negative result count",
			mutate: func(c *Config) { c.Num = -5 },
			want:   ErrConfig,
		},
		{
			name:   "unknown engine",
			mutate: func(c *Config) { c.Engine = "altavista" },
			want:   engine.ErrUnknown,
		},
		{
			name:   "unknown action",
			mutate: func(c *Config) { c.Action = "teleport" },
			want:   dispatch.ErrUnknownAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Delay = time.Second
	cfg.Num = 50
	cfg.TimePast = "month"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestRunPrintURLs(t *testing.T) {
	cfg := baseConfig()
	cfg.Prepend = "best "
	cfg.Num = 20

	r := &Runner{
		Config:     cfg,
		Dispatcher: &dispatch.Dispatcher{},
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(res.Attempts))
	}
	if res.Failed() != 0 {
		t.Errorf("Failed() = %d, want 0", res.Failed())
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}

	want := []string{
		"https://www.google.com/search?num=20&q=best+cats",
		"https://www.google.com/search?num=20&q=best+dogs",
	}
	if len(res.Rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(res.Rows), len(want))
	}
	for i, w := range want {
		if res.Rows[i] != w {
			t.Errorf("row %d = %q, want %q", i, res.Rows[i], w)
		}
	}
}

func TestRunOpenURLFailureContinues(t *testing.T) {
	var launched []string
	boom := errors.New("no browser")

	cfg := baseConfig()
	cfg.Action = "open_url"
	cfg.Queries = []string{"a", "b", "c"}

	r := &Runner{
		Config: cfg,
		Dispatcher: &dispatch.Dispatcher{
			Launcher: launcher.Func(func(u string) error {
				launched = append(launched, u)
				if len(launched) == 2 {
					return boom
				}
				return nil
			}),
		},
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("got %d attempts, want 3", len(res.Attempts))
	}
	if res.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", res.Failed())
	}
	if !errors.Is(res.Attempts[1].Err, boom) {
		t.Errorf("attempt 2 error = %v, want %v", res.Attempts[1].Err, boom)
	}
	if len(launched) != 3 {
		t.Errorf("launched %d times, want 3", len(launched))
	}
}

func TestRunMapsTimeConflictSkipsQuery(t *testing.T) {
	cfg := baseConfig()
	cfg.Engine = "google-maps"
	cfg.Action = "print_url"
	cfg.TimePast = "week"

	r := &Runner{Config: cfg, Dispatcher: &dispatch.Dispatcher{}}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(res.Attempts))
	}
	for _, a := range res.Attempts {
		if !errors.Is(a.Err, engine.ErrTimeConflict) {
			t.Errorf("attempt %d error = %v, want ErrTimeConflict", a.Seq, a.Err)
		}
	}
	if len(res.Rows) != 0 {
		t.Errorf("got %d rows, want 0", len(res.Rows))
	}
}

func TestRunBadTimeKeywordSkipsQuery(t *testing.T) {
	cfg := baseConfig()
	cfg.TimePast = "fortnight"

	r := &Runner{Config: cfg, Dispatcher: &dispatch.Dispatcher{}}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", res.Failed())
	}
	if !errors.Is(res.Attempts[0].Err, timefilter.ErrBadKeyword) {
		t.Errorf("error = %v, want ErrBadKeyword", res.Attempts[0].Err)
	}
}

type fakeSession struct {
	html    string
	navErr  error
	visited []string
	closed  bool
}

func (f *fakeSession) Navigate(ctx context.Context, url string) (*session.Page, error) {
	f.visited = append(f.visited, url)
	if f.navErr != nil {
		return nil, f.navErr
	}
	return &session.Page{URL: url, HTML: f.html}, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func TestRunResultLinks(t *testing.T) {
	sess := &fakeSession{
		html: `<html><body>
			<a href="https://example.com/one">First result</a>
			<a href="https://example.org/two">Second result</a>
		</body></html>`,
	}

	cfg := baseConfig()
	cfg.Queries = []string{"cats"}
	cfg.Action = "print_result_link"

	r := &Runner{
		Config: cfg,
		Dispatcher: &dispatch.Dispatcher{
			NewSession: func(ctx context.Context) (session.Session, error) { return sess, nil },
		},
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"https://example.com/one", "https://example.org/two"}
	if len(res.Rows) != len(want) {
		t.Fatalf("got rows %v, want %v", res.Rows, want)
	}
	for i, w := range want {
		if res.Rows[i] != w {
			t.Errorf("row %d = %q, want %q", i, res.Rows[i], w)
		}
	}
	if len(sess.visited) != 1 || !strings.Contains(sess.visited[0], "q=cats") {
		t.Errorf("visited = %v", sess.visited)
	}
	if !sess.closed {
		t.Error("session was not closed after the run")
	}
}

func TestRunSessionFailureAborts(t *testing.T) {
	boom := errors.New("tab crashed")
	sess := &fakeSession{navErr: boom}

	cfg := baseConfig()
	cfg.Queries = []string{"a", "b", "c"}
	cfg.Action = "save_html"

	r := &Runner{
		Config: cfg,
		Dispatcher: &dispatch.Dispatcher{
			NewSession: func(ctx context.Context) (session.Session, error) { return sess, nil },
			OutDir:     t.TempDir(),
		},
	}

	res, err := r.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("got %d attempts, want 1; later queries must not run", len(res.Attempts))
	}
}

func TestRunSessionActionBuildErrorContinues(t *testing.T) {
	sess := &fakeSession{html: "<html></html>"}

	cfg := baseConfig()
	cfg.Action = "save_html"
	cfg.TimePast = "fortnight"

	r := &Runner{
		Config: cfg,
		Dispatcher: &dispatch.Dispatcher{
			NewSession: func(ctx context.Context) (session.Session, error) { return sess, nil },
			OutDir:     t.TempDir(),
		},
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v; URL-construction errors must not abort the run", err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(res.Attempts))
	}
	for _, a := range res.Attempts {
		if !errors.Is(a.Err, timefilter.ErrBadKeyword) {
			t.Errorf("attempt %d error = %v, want ErrBadKeyword", a.Seq, a.Err)
		}
	}
	if len(sess.visited) != 0 {
		t.Errorf("session navigated %d times, want 0", len(sess.visited))
	}
}

type memHistory struct {
	records []*history.Record
}

func (m *memHistory) Save(ctx context.Context, rec *history.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memHistory) Query(ctx context.Context, f history.Filter) ([]*history.Record, error) {
	return m.records, nil
}

func (m *memHistory) Close() error { return nil }

func TestRunRecordsHistory(t *testing.T) {
	hist := &memHistory{}

	cfg := baseConfig()
	cfg.Engine = "bing"

	r := &Runner{
		Config:     cfg,
		Dispatcher: &dispatch.Dispatcher{},
		History:    hist,
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(hist.records) != 2 {
		t.Fatalf("got %d history records, want 2", len(hist.records))
	}
	for i, rec := range hist.records {
		if rec.RunID != res.RunID {
			t.Errorf("record %d run id = %q, want %q", i, rec.RunID, res.RunID)
		}
		if rec.Seq != i+1 {
			t.Errorf("record %d seq = %d, want %d", i, rec.Seq, i+1)
		}
		if !rec.OK {
			t.Errorf("record %d not OK: %s", i, rec.Error)
		}
		if rec.Engine != "bing" {
			t.Errorf("record %d engine = %q", i, rec.Engine)
		}
	}
}

func TestRunReadsQueriesFromStdin(t *testing.T) {
	cfg := baseConfig()
	cfg.Queries = nil
	cfg.QueriesFrom = "-"

	r := &Runner{
		Config:     cfg,
		Dispatcher: &dispatch.Dispatcher{},
		Stdin:      strings.NewReader("red pandas\n\nsea otters\n"),
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(res.Attempts))
	}
	if res.Attempts[0].Query != "red pandas" || res.Attempts[1].Query != "sea otters" {
		t.Errorf("queries = %q, %q", res.Attempts[0].Query, res.Attempts[1].Query)
	}
}

func TestRunCanceledDuringPacing(t *testing.T) {
	cfg := baseConfig()
	cfg.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{Config: cfg, Dispatcher: &dispatch.Dispatcher{}}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("got %d attempts, want 1 before cancel", len(res.Attempts))
	}
}
