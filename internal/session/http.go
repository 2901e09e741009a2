package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/forage/internal/blockdetect"
	"github.com/FranksOps/forage/internal/fingerprint"
	"github.com/FranksOps/forage/pkg/httpclient"
	"github.com/FranksOps/forage/pkg/proxy"
	"github.com/FranksOps/forage/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// HTTPOptions configures the plain-HTTP session driver.
type HTTPOptions struct {
	Timeout      time.Duration
	MaxRedirects int
	Fingerprint  fingerprint.Profile
	UserAgents   *useragent.Pool
	Proxies      *proxy.Pool
	// RespectRobots checks the engine host's robots.txt before fetching.
	RespectRobots bool
	// RobotsAgent is the agent name matched against robots.txt groups.
	RobotsAgent string
}

// HTTP fetches pages without a real browser, using a fingerprinted TLS
// transport and rotating User-Agents. Engines that demand JavaScript
// will serve it degraded markup; for those, use the Chrome driver.
type HTTP struct {
	opts      HTTPOptions
	client    *httpclient.Client
	logger    *slog.Logger
	robots    *robotsAuditor
	detectors []blockdetect.Detector
}

var _ Session = (*HTTP)(nil)

// NewHTTP builds the HTTP session driver.
func NewHTTP(opts HTTPOptions, logger *slog.Logger) (*HTTP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = 5
	}
	if opts.UserAgents == nil {
		opts.UserAgents = useragent.NewPool(nil)
	}
	if opts.Fingerprint == "" {
		opts.Fingerprint = fingerprint.ProfileChrome
	}
	if opts.RobotsAgent == "" {
		opts.RobotsAgent = "*"
	}

	// Per-request proxy rotation: the transport's proxy func reads the
	// chosen proxy out of the request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(opts.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      opts.Timeout,
		MaxRedirects: opts.MaxRedirects,
		UseCookieJar: true,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	h := &HTTP{
		opts:      opts,
		client:    client,
		logger:    logger,
		detectors: blockdetect.Default(),
	}
	if opts.RespectRobots {
		h.robots = newRobotsAuditor(h.fetchRaw, logger)
	}
	return h, nil
}

// Navigate fetches the URL and returns the page. Transport failures are
// errors; HTTP error statuses still yield a page, with a warning, since
// saving the served body (often a challenge page) is still useful.
func (h *HTTP) Navigate(ctx context.Context, target string) (*Page, error) {
	if h.robots != nil {
		allowed, err := h.robots.isAllowed(ctx, target, h.opts.RobotsAgent)
		if err != nil {
			h.logger.Warn("robots.txt check failed, proceeding", "url", target, "err", err)
		} else if !allowed {
			return nil, fmt.Errorf("fetch %s: disallowed by robots.txt", target)
		}
	}

	status, header, body, finalURL, err := h.fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}

	if hit, src := blockdetect.Detect(status, header, body, h.detectors); hit {
		h.logger.Warn("engine served a challenge page", "url", target, "source", src)
	} else if status >= 400 {
		h.logger.Warn("engine returned an error page", "url", target, "status", status)
	}

	return &Page{URL: finalURL, HTML: string(body)}, nil
}

// Close releases nothing; the HTTP driver holds no external process.
func (h *HTTP) Close() error {
	return nil
}

func (h *HTTP) fetch(ctx context.Context, target string) (int, http.Header, []byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, nil, "", fmt.Errorf("create request: %w", err)
	}

	var activeProxy *url.URL
	if h.opts.Proxies != nil {
		if activeProxy = h.opts.Proxies.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	req.Header.Set("User-Agent", h.opts.UserAgents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := h.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			h.opts.Proxies.MarkFailure(activeProxy)
		}
		return 0, nil, nil, "", err
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		h.opts.Proxies.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, "", fmt.Errorf("read body: %w", err)
	}

	return resp.StatusCode, resp.Header, body, resp.Request.URL.String(), nil
}

// fetchRaw is the trimmed fetch used for robots.txt lookups.
func (h *HTTP) fetchRaw(ctx context.Context, target string) (int, []byte, error) {
	status, _, body, _, err := h.fetch(ctx, target)
	return status, body, err
}
