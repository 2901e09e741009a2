// Package dispatch executes the configured action for each built query:
// launching a browser, emitting link rows, or driving an automation
// session to save pages and harvest result links.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/forage/internal/engine"
	"github.com/FranksOps/forage/internal/session"
	"github.com/FranksOps/forage/pkg/launcher"
)

// Action identifies what to do with a built search URL.
type Action string

const (
	OpenURL             Action = "open_url"
	PrintURL            Action = "print_url"
	PrintHTMLLink       Action = "print_html_link"
	PrintOrgLink        Action = "print_org_link"
	SaveHTML            Action = "save_html"
	PrintResultLink     Action = "print_result_link"
	PrintResultHTMLLink Action = "print_result_html_link"
	PrintResultOrgLink  Action = "print_result_org_link"
)

// ErrUnknownAction reports an action outside the supported set. The
// action is a run-level choice, so this aborts the whole run.
var ErrUnknownAction = errors.New("unknown action")

// All returns the supported actions in a stable order.
func All() []Action {
	return []Action{
		OpenURL, PrintURL, PrintHTMLLink, PrintOrgLink,
		SaveHTML, PrintResultLink, PrintResultHTMLLink, PrintResultOrgLink,
	}
}

// Parse validates a user-supplied action name. Empty defaults to OpenURL.
func Parse(s string) (Action, error) {
	if s == "" {
		return OpenURL, nil
	}
	a := Action(s)
	for _, known := range All() {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// NeedsSession reports whether the action requires an automation session.
func (a Action) NeedsSession() bool {
	switch a {
	case SaveHTML, PrintResultLink, PrintResultHTMLLink, PrintResultOrgLink:
		return true
	}
	return false
}

// Request carries everything the dispatcher needs for one query.
type Request struct {
	Seq    int    // 1-based position in the query list
	Query  string // decorated query, used as link label and filename stem
	URL    string // built search URL
	Engine engine.Engine
}

// Dispatcher performs actions. It owns the automation session, created
// lazily on the first action that needs one and reused for the rest of
// the run.
type Dispatcher struct {
	Launcher   launcher.Launcher
	NewSession session.Factory
	OutDir     string // destination for save_html, "" = current directory
	Logger     *slog.Logger

	sess session.Session
}

// Do executes the action and returns the output rows it produced, if
// any. open_url and save_html produce no rows.
func (d *Dispatcher) Do(ctx context.Context, action Action, req Request) ([]string, error) {
	switch action {
	case OpenURL:
		if err := d.Launcher.Launch(req.URL); err != nil {
			return nil, fmt.Errorf("open %s: %w", req.URL, err)
		}
		return nil, nil

	case PrintURL:
		return []string{req.URL}, nil

	case PrintHTMLLink:
		return []string{htmlRow(req.URL, req.Query)}, nil

	case PrintOrgLink:
		return []string{orgRow(req.URL, req.Query)}, nil

	case SaveHTML, PrintResultLink, PrintResultHTMLLink, PrintResultOrgLink:
		return d.withSession(ctx, action, req)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (d *Dispatcher) withSession(ctx context.Context, action Action, req Request) ([]string, error) {
	sess, err := d.session(ctx)
	if err != nil {
		return nil, err
	}

	page, err := sess.Navigate(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	if action == SaveHTML {
		name := fmt.Sprintf("%d-%s.%s.html", req.Seq, sanitize(req.Query), req.Engine)
		written, err := writeIfAbsent(d.OutDir, name, []byte(page.HTML))
		if err != nil {
			return nil, fmt.Errorf("save page: %w", err)
		}
		d.logger().Info("saved page", "file", written, "url", req.URL)
		return nil, nil
	}

	links, err := page.Links()
	if err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}

	rows := make([]string, 0, len(links))
	for _, l := range links {
		switch action {
		case PrintResultLink:
			rows = append(rows, l.URL)
		case PrintResultHTMLLink:
			rows = append(rows, htmlRow(l.URL, l.Text))
		case PrintResultOrgLink:
			rows = append(rows, orgRow(l.URL, l.Text))
		}
	}
	return rows, nil
}

// session returns the run's automation session, connecting on first use.
func (d *Dispatcher) session(ctx context.Context) (session.Session, error) {
	if d.sess != nil {
		return d.sess, nil
	}
	if d.NewSession == nil {
		return nil, errors.New("no session factory configured")
	}

	d.logger().Debug("connecting automation session")
	sess, err := d.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect session: %w", err)
	}
	d.sess = sess
	return sess, nil
}

// Close releases the automation session if one was created.
func (d *Dispatcher) Close() error {
	if d.sess == nil {
		return nil
	}
	err := d.sess.Close()
	d.sess = nil
	return err
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
