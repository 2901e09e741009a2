package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the Chrome-backed session driver.
type ChromeOptions struct {
	// Headless controls whether the launched Chrome shows a window.
	Headless bool
	// UserAgent overrides the browser's User-Agent when non-empty.
	UserAgent string
	// ProxyURL routes browser traffic through a proxy when non-empty.
	ProxyURL string
	// Timeout bounds startup and each navigation. Defaults to 30s.
	Timeout time.Duration
}

// Chrome drives a locally launched Chrome instance. Not safe for
// concurrent use; callers navigate one page at a time.
type Chrome struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	timeout     time.Duration
	logger      *slog.Logger
}

var _ Session = (*Chrome)(nil)

// NewChrome launches Chrome and opens the tab reused for the whole run.
func NewChrome(ctx context.Context, opts ChromeOptions, logger *slog.Logger) (*Chrome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	// Copy the default options to avoid mutating the package-level slice.
	allocOpts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
	copy(allocOpts, chromedp.DefaultExecAllocatorOptions[:])
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 720),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		timeout:     opts.Timeout,
		logger:      logger,
	}

	// Start the browser with an empty action. The tab context must not
	// be wrapped in WithTimeout here: chromedp binds the CDP session to
	// the context of the first Run, and canceling a derived context
	// would tear the session down. Bound startup with a select instead.
	logger.Debug("launching chrome", "headless", opts.Headless)
	startDone := make(chan error, 1)
	go func() { startDone <- chromedp.Run(tabCtx) }()
	select {
	case err := <-startDone:
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-time.After(opts.Timeout):
		c.Close()
		return nil, fmt.Errorf("start chrome: timed out after %v", opts.Timeout)
	}

	return c, nil
}

// Navigate loads the URL, waits for the body, and captures the rendered
// document and final location.
func (c *Chrome) Navigate(ctx context.Context, target string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(c.tabCtx, c.timeout)
	defer cancel()

	var html, location string
	err := chromedp.Run(tctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}

	c.logger.Debug("page rendered", "url", location, "bytes", len(html))
	return &Page{URL: location, HTML: html}, nil
}

// Close shuts down the tab, the browser, and its process.
func (c *Chrome) Close() error {
	c.tabCancel()
	c.allocCancel()
	return nil
}
