package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/forage/internal/dispatch"
	"github.com/FranksOps/forage/internal/engine"
	"github.com/FranksOps/forage/internal/fingerprint"
	"github.com/FranksOps/forage/internal/history"
	"github.com/FranksOps/forage/internal/metrics"
	"github.com/FranksOps/forage/internal/report"
	"github.com/FranksOps/forage/internal/run"
	"github.com/FranksOps/forage/internal/session"
	"github.com/FranksOps/forage/pkg/launcher"
	"github.com/FranksOps/forage/pkg/proxy"
	"github.com/FranksOps/forage/pkg/useragent"
)

const dateLayout = "2006-01-02"

// exitCode is set by the root command's RunE so main can distinguish a
// clean run from one with failed queries.
var exitCode int

type options struct {
	QueriesFrom string
	Prepend     string
	Append      string

	Delay    time.Duration
	MinDelay time.Duration
	MaxDelay time.Duration

	Num       int
	TimePast  string
	TimeStart string
	TimeEnd   string

	Engine string
	Action string
	OutDir string

	Driver        string
	Headless      bool
	Timeout       time.Duration
	Fingerprint   string
	Proxies       string
	RespectRobots bool

	HistoryDSN  string
	Report      string
	MetricsPort int
	Verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "forage [flags] [query...]",
		Short: "Build search engine URLs and open, print, or harvest them",
		Long: `forage turns one or more query phrases into search engine URLs and
performs an action on each: open it in a browser, print it in one of
several link formats, save the result page, or extract result links.

Queries come from the command line, a file, or stdin ("-"). Every flag
can also be set through a FORAGE_* environment variable.`,
		Example: `  forage "grilled cheese"
  forage -e bing -a print_url "cats" "dogs"
  forage -f queries.txt --delay 5s -a save_html --out-dir pages/
  echo "red pandas" | forage -f - -a print_result_link --driver http`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.QueriesFrom, "queries-from", "f", "", `file of queries, one per line ("-" reads stdin)`)
	f.StringVar(&opts.Prepend, "prepend", "", "text prefixed to every query")
	f.StringVar(&opts.Append, "append", "", "text suffixed to every query")
	f.DurationVar(&opts.Delay, "delay", 0, "fixed pause between queries")
	f.DurationVar(&opts.MinDelay, "min-delay", 0, "lower bound of a random pause (requires --max-delay)")
	f.DurationVar(&opts.MaxDelay, "max-delay", 0, "upper bound of a random pause (requires --min-delay)")
	f.IntVarP(&opts.Num, "num", "n", 0, fmt.Sprintf("result count hint (default %d)", engine.DefaultNum))
	f.StringVar(&opts.TimePast, "time-past", "", "restrict results to the past hour|24hour|day|week|month|year")
	f.StringVar(&opts.TimeStart, "time-start", "", "range start, YYYY-MM-DD (requires --time-end)")
	f.StringVar(&opts.TimeEnd, "time-end", "", "range end, YYYY-MM-DD (requires --time-start)")
	f.StringVarP(&opts.Engine, "engine", "e", string(engine.Google), "search engine: "+joinEngines())
	f.StringVarP(&opts.Action, "action", "a", string(dispatch.OpenURL), "action: "+joinActions())
	f.StringVar(&opts.OutDir, "out-dir", "", "directory for saved pages (default current directory)")
	f.StringVar(&opts.Driver, "driver", "chrome", "automation driver for session actions: chrome|http")
	f.BoolVar(&opts.Headless, "headless", true, "run the Chrome driver without a window")
	f.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-navigation timeout for session actions")
	f.StringVar(&opts.Fingerprint, "fingerprint", string(fingerprint.ProfileChrome), "TLS fingerprint for the http driver: chrome|firefox|safari|go|random")
	f.StringVar(&opts.Proxies, "proxies", "", "file of proxy URLs, one per line")
	f.BoolVar(&opts.RespectRobots, "respect-robots", false, "honor robots.txt with the http driver")
	f.StringVar(&opts.HistoryDSN, "history", "", "record queries: sqlite path, *.ndjson path, or postgres:// DSN")
	f.StringVar(&opts.Report, "report", "", "print a run summary to stderr: text|json")
	f.IntVar(&opts.MetricsPort, "metrics-port", 0, "expose Prometheus metrics on this port")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	viper.SetEnvPrefix("FORAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(f)

	cmd.AddCommand(newHistoryCmd())
	return cmd
}

func runRoot(cmd *cobra.Command, opts *options, args []string) error {
	applyEnv(cmd)
	logger := newLogger(opts.Verbose)
	slog.SetDefault(logger)

	cfg := run.Config{
		Queries:     args,
		QueriesFrom: opts.QueriesFrom,
		Prepend:     opts.Prepend,
		Append:      opts.Append,
		Delay:       opts.Delay,
		MinDelay:    opts.MinDelay,
		MaxDelay:    opts.MaxDelay,
		Num:         opts.Num,
		TimePast:    opts.TimePast,
		Engine:      opts.Engine,
		Action:      opts.Action,
		OutDir:      opts.OutDir,
	}

	var err error
	if cfg.TimeStart, err = parseDate(opts.TimeStart); err != nil {
		return fmt.Errorf("--time-start: %w", err)
	}
	if cfg.TimeEnd, err = parseDate(opts.TimeEnd); err != nil {
		return fmt.Errorf("--time-end: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.MetricsPort > 0 {
		srv := metrics.Start(opts.MetricsPort)
		defer srv.Stop(context.Background())
	}

	var hist history.Backend
	if opts.HistoryDSN != "" {
		hist, err = openHistory(ctx, opts.HistoryDSN)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer hist.Close()
	}

	disp := &dispatch.Dispatcher{
		Launcher:   launcher.System(),
		NewSession: sessionFactory(opts, logger),
		OutDir:     opts.OutDir,
		Logger:     logger,
	}

	runner := &run.Runner{
		Config:     cfg,
		Dispatcher: disp,
		History:    hist,
		Logger:     logger,
	}

	res, runErr := runner.Run(ctx)
	if res != nil {
		for _, row := range res.Rows {
			fmt.Fprintln(cmd.OutOrStdout(), row)
		}
		if opts.Report != "" {
			if err := writeReport(cmd.ErrOrStderr(), opts.Report, res); err != nil {
				logger.Warn("writing report failed", "error", err)
			}
		}
		if res.Failed() > 0 {
			exitCode = 1
		}
	}
	return runErr
}

// applyEnv backfills every flag the user left unset from its FORAGE_*
// environment variable. Flags given on the command line always win.
func applyEnv(cmd *cobra.Command) {
	f := cmd.Flags()
	f.VisitAll(func(fl *pflag.Flag) {
		if fl.Changed || !viper.IsSet(fl.Name) {
			return
		}
		v := viper.GetString(fl.Name)
		if v == "" {
			return
		}
		if err := f.Set(fl.Name, v); err != nil {
			slog.Warn("ignoring environment value", "flag", fl.Name, "error", err)
		}
	})
}

// sessionFactory defers driver construction until the first action that
// needs a session, so URL-only runs never touch Chrome or proxies.
func sessionFactory(opts *options, logger *slog.Logger) session.Factory {
	return func(ctx context.Context) (session.Session, error) {
		proxies, err := loadProxies(opts.Proxies)
		if err != nil {
			return nil, err
		}

		switch opts.Driver {
		case "chrome":
			chromeOpts := session.ChromeOptions{
				Headless: opts.Headless,
				Timeout:  opts.Timeout,
			}
			if proxies != nil {
				if p := proxies.Next(); p != nil {
					chromeOpts.ProxyURL = p.String()
				}
			}
			return session.NewChrome(ctx, chromeOpts, logger)

		case "http":
			return session.NewHTTP(session.HTTPOptions{
				Timeout:       opts.Timeout,
				Fingerprint:   fingerprint.Profile(opts.Fingerprint),
				UserAgents:    useragent.NewPool(nil),
				Proxies:       proxies,
				RespectRobots: opts.RespectRobots,
				RobotsAgent:   "forage",
			}, logger)

		default:
			return nil, fmt.Errorf("unknown driver %q (chrome|http)", opts.Driver)
		}
	}
}

func loadProxies(path string) (*proxy.Pool, error) {
	if path == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{})
	if err := pool.LoadFile(path); err != nil {
		return nil, fmt.Errorf("load proxies: %w", err)
	}
	return pool, nil
}

func writeReport(w io.Writer, format string, res *run.Result) error {
	entries := make([]report.Entry, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		e := report.Entry{
			Query:  a.Query,
			Engine: string(a.Engine),
			Action: string(a.Action),
			URL:    a.URL,
			OK:     a.OK(),
		}
		if a.Err != nil {
			e.Error = a.Err.Error()
		}
		entries = append(entries, e)
	}
	sum := report.Build(res.RunID, res.StartedAt, entries)

	switch format {
	case "text":
		return sum.WriteText(w)
	case "json":
		return sum.WriteJSON(w)
	default:
		return fmt.Errorf("unknown report format %q (text|json)", format)
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so piped row output stays clean.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func joinEngines() string {
	parts := make([]string, 0, len(engine.All()))
	for _, e := range engine.All() {
		parts = append(parts, string(e))
	}
	return strings.Join(parts, "|")
}

func joinActions() string {
	parts := make([]string, 0, len(dispatch.All()))
	for _, a := range dispatch.All() {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, "|")
}
