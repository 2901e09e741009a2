// Package run validates a run configuration and executes the query
// pipeline: resolve queries, build one URL per query, dispatch the
// configured action, and record the outcome of every attempt.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/forage/internal/dispatch"
	"github.com/FranksOps/forage/internal/engine"
	"github.com/FranksOps/forage/internal/history"
	"github.com/FranksOps/forage/internal/metrics"
	"github.com/FranksOps/forage/internal/query"
	"github.com/FranksOps/forage/internal/timefilter"
	"github.com/FranksOps/forage/pkg/ratelimit"
)

// ErrConfig reports an invalid combination of run options. Nothing runs
// when the configuration is rejected.
var ErrConfig = errors.New("invalid configuration")

// Config holds every user-facing option for one run.
type Config struct {
	Queries     []string // explicit query list
	QueriesFrom string   // file path or "-" for stdin; exclusive with Queries

	Prepend string // text prefixed to every query
	Append  string // text suffixed to every query

	Delay    time.Duration // fixed pause between queries
	MinDelay time.Duration // lower bound of a random pause; paired with MaxDelay
	MaxDelay time.Duration

	Num       int    // result count hint, 0 = engine default
	TimePast  string // relative time keyword; exclusive with TimeStart/TimeEnd
	TimeStart time.Time
	TimeEnd   time.Time

	Engine string
	Action string
	OutDir string // destination for saved pages
}

// plan is the validated, parsed form of a Config.
type plan struct {
	queries []string
	eng     engine.Engine
	action  dispatch.Action
	filter  timefilter.Filter
	pacer   *ratelimit.Pacer
}

// Validate checks the option combinations without touching query
// sources or network. Mutual exclusions and pairings fail with
// ErrConfig; unknown engine and action names keep their own errors so
// callers can tell the cases apart.
func (c Config) Validate() error {
	_, err := c.plan(nil)
	return err
}

func (c Config) plan(stdin io.Reader) (*plan, error) {
	if len(c.Queries) > 0 && c.QueriesFrom != "" {
		return nil, fmt.Errorf("%w: queries and a query source are mutually exclusive", ErrConfig)
	}
	if len(c.Queries) == 0 && c.QueriesFrom == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfig, query.ErrNoSource)
	}

	if c.Delay != 0 && (c.MinDelay != 0 || c.MaxDelay != 0) {
		return nil, fmt.Errorf("%w: a fixed delay and a random delay range are mutually exclusive", ErrConfig)
	}
	if (c.MinDelay != 0) != (c.MaxDelay != 0) {
		return nil, fmt.Errorf("%w: min and max delay must be given together", ErrConfig)
	}
	if c.Delay < 0 || c.MinDelay < 0 || c.MaxDelay < 0 {
		return nil, fmt.Errorf("%w: delays must not be negative", ErrConfig)
	}

	if c.TimePast != "" && (!c.TimeStart.IsZero() || !c.TimeEnd.IsZero()) {
		return nil, fmt.Errorf("%w: a relative time filter and a date range are mutually exclusive", ErrConfig)
	}
	if c.TimeStart.IsZero() != c.TimeEnd.IsZero() {
		return nil, fmt.Errorf("%w: time range start and end must be given together", ErrConfig)
	}

	if c.Num < 0 {
		return nil, fmt.Errorf("%w: result count must be positive", ErrConfig)
	}

	eng, err := engine.Parse(c.Engine)
	if err != nil {
		return nil, err
	}
	action, err := dispatch.Parse(c.Action)
	if err != nil {
		return nil, err
	}

	p := &plan{eng: eng, action: action}

	switch {
	case c.TimePast != "":
		p.filter = timefilter.Past(c.TimePast)
	case !c.TimeStart.IsZero():
		p.filter = timefilter.Range(c.TimeStart, c.TimeEnd)
	default:
		p.filter = timefilter.None()
	}

	switch {
	case c.Delay > 0:
		p.pacer = ratelimit.Fixed(c.Delay)
	case c.MaxDelay > 0:
		p.pacer = ratelimit.Between(c.MinDelay, c.MaxDelay)
	default:
		p.pacer = ratelimit.None()
	}

	if stdin != nil {
		p.queries, err = query.Resolve(c.Queries, c.QueriesFrom, stdin)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}

	return p, nil
}

// Attempt is the outcome of one query.
type Attempt struct {
	Seq    int
	Query  string // decorated query
	URL    string // built URL, "" when URL construction failed
	Engine engine.Engine
	Action dispatch.Action
	Err    error // nil on success
}

// OK reports whether the attempt succeeded.
func (a Attempt) OK() bool { return a.Err == nil }

// Result collects everything a run produced.
type Result struct {
	RunID     string
	StartedAt time.Time
	Attempts  []Attempt
	Rows      []string // output rows from print actions, in query order
}

// Failed counts the unsuccessful attempts.
func (r *Result) Failed() int {
	n := 0
	for _, a := range r.Attempts {
		if !a.OK() {
			n++
		}
	}
	return n
}

// Runner executes runs. Dispatcher is required; History is optional.
type Runner struct {
	Config     Config
	Dispatcher *dispatch.Dispatcher
	History    history.Backend
	Logger     *slog.Logger
	Stdin      io.Reader // query source for "-", defaults to os.Stdin
}

// Run executes the whole pipeline. Queries run strictly in order, one
// at a time, with the configured pause before every query after the
// first. A query whose URL cannot be built or whose browser launch
// fails is recorded as a failed attempt and the run continues; a
// session action that fails while navigating or saving aborts the run
// because later queries would hit the same broken session or
// filesystem.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	p, err := r.Config.plan(stdin)
	if err != nil {
		return nil, err
	}
	defer r.Dispatcher.Close()

	log := r.logger()
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log.Info("starting run",
		"run_id", res.RunID,
		"engine", p.eng,
		"action", p.action,
		"queries", len(p.queries))

	for i, raw := range p.queries {
		if i > 0 {
			if err := p.pacer.Wait(ctx); err != nil {
				return res, fmt.Errorf("pacing interrupted: %w", err)
			}
		}

		att, fatal := r.dispatchOne(ctx, p, i+1, raw, res)
		res.Attempts = append(res.Attempts, att)
		r.record(ctx, res.RunID, att)

		if att.Err != nil {
			if fatal {
				return res, att.Err
			}
			log.Warn("query failed", "seq", att.Seq, "query", att.Query, "error", att.Err)
		}
	}

	log.Info("run finished",
		"run_id", res.RunID,
		"attempts", len(res.Attempts),
		"failed", res.Failed())
	return res, nil
}

// dispatchOne builds and executes a single query. fatal is true only
// when a session action failed inside the dispatcher itself; errors
// while building the URL fail just this attempt, whatever the action.
func (r *Runner) dispatchOne(ctx context.Context, p *plan, seq int, raw string, res *Result) (Attempt, bool) {
	start := time.Now()
	att := Attempt{
		Seq:    seq,
		Query:  query.Decorate(raw, r.Config.Prepend, r.Config.Append),
		Engine: p.eng,
		Action: p.action,
	}
	rowCount := 0
	defer func() {
		metrics.RecordDispatch(string(p.eng), string(p.action), att.OK(), rowCount, time.Since(start))
	}()

	frag, err := p.filter.Fragment()
	if err != nil {
		att.Err = err
		return att, false
	}

	url, warnings, err := engine.Build(p.eng, engine.Params{
		Query:        att.Query,
		TimeFragment: frag,
		Num:          r.Config.Num,
		NumSet:       r.Config.Num > 0,
	})
	if err != nil {
		att.Err = err
		return att, false
	}
	att.URL = url
	for _, w := range warnings {
		r.logger().Warn(w, "query", att.Query)
	}

	rows, err := r.Dispatcher.Do(ctx, p.action, dispatch.Request{
		Seq:    seq,
		Query:  att.Query,
		URL:    url,
		Engine: p.eng,
	})
	if err != nil {
		att.Err = err
		return att, p.action.NeedsSession()
	}
	rowCount = len(rows)
	res.Rows = append(res.Rows, rows...)
	return att, false
}

// record persists the attempt when a history backend is configured.
// History failures are logged, never fatal.
func (r *Runner) record(ctx context.Context, runID string, att Attempt) {
	if r.History == nil {
		return
	}
	rec := &history.Record{
		ID:        uuid.NewString(),
		RunID:     runID,
		Seq:       att.Seq,
		Query:     att.Query,
		Engine:    string(att.Engine),
		Action:    string(att.Action),
		URL:       att.URL,
		OK:        att.OK(),
		CreatedAt: time.Now().UTC(),
	}
	if att.Err != nil {
		rec.Error = att.Err.Error()
	}
	if err := r.History.Save(ctx, rec); err != nil {
		r.logger().Warn("recording attempt failed", "seq", att.Seq, "error", err)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
