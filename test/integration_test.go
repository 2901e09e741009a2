//go:build integration

// End-to-end tests that exercise the dispatcher against a live HTTP
// server using the plain-HTTP session driver. Run with:
//
//	go test -tags integration ./test/
package test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/forage/internal/dispatch"
	"github.com/FranksOps/forage/internal/fingerprint"
	"github.com/FranksOps/forage/internal/run"
	"github.com/FranksOps/forage/internal/session"
	"github.com/FranksOps/forage/pkg/launcher"
)

const resultsPage = `<html><body>
<h1>Results</h1>
<a href="https://example.com/first">First hit</a>
<a href="/relative">Relative hit</a>
<a href="mailto:nobody@example.com">Mail me</a>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(resultsPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func httpFactory(t *testing.T) session.Factory {
	t.Helper()
	return func(ctx context.Context) (session.Session, error) {
		return session.NewHTTP(session.HTTPOptions{
			Timeout:     5 * time.Second,
			Fingerprint: fingerprint.ProfileGo,
		}, slog.Default())
	}
}

func TestSaveHTMLWritesPage(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()

	d := &dispatch.Dispatcher{NewSession: httpFactory(t), OutDir: dir}
	defer d.Close()

	_, err := d.Do(context.Background(), dispatch.SaveHTML, dispatch.Request{
		Seq:    1,
		Query:  "grilled cheese",
		URL:    srv.URL,
		Engine: "google",
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	path := filepath.Join(dir, "1-grilled_cheese.google.html")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved file: %v", err)
	}
	if !strings.Contains(string(data), "First hit") {
		t.Errorf("saved page missing content:\n%s", data)
	}
}

func TestExtractResultLinks(t *testing.T) {
	srv := newServer(t)

	d := &dispatch.Dispatcher{NewSession: httpFactory(t)}
	defer d.Close()

	rows, err := d.Do(context.Background(), dispatch.PrintResultLink, dispatch.Request{
		Seq: 1, Query: "cats", URL: srv.URL, Engine: "google",
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d links, want 2 (mailto dropped): %v", len(rows), rows)
	}
	if rows[0] != "https://example.com/first" {
		t.Errorf("row 0 = %q", rows[0])
	}
	if !strings.HasPrefix(rows[1], srv.URL) {
		t.Errorf("relative link not resolved against the page: %q", rows[1])
	}
}

func TestFullRunOpensEveryQuery(t *testing.T) {
	var opened []string

	r := &run.Runner{
		Config: run.Config{
			Queries: []string{"red pandas", "sea otters", "pine martens"},
			Engine:  "duckduckgo",
			Action:  "open_url",
		},
		Dispatcher: &dispatch.Dispatcher{
			Launcher: launcher.Func(func(u string) error {
				opened = append(opened, u)
				return nil
			}),
		},
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(opened) != 3 {
		t.Fatalf("opened %d URLs, want 3", len(opened))
	}
	if res.Failed() != 0 {
		t.Errorf("Failed() = %d", res.Failed())
	}
	for i, u := range opened {
		if !strings.HasPrefix(u, "https://duckduckgo.com/?q=") {
			t.Errorf("url %d = %q", i, u)
		}
	}
}
