package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// robotsAuditor fetches and caches robots.txt per host. Concurrent
// lookups for the same host are collapsed into one fetch.
type robotsAuditor struct {
	fetch  func(ctx context.Context, url string) (int, []byte, error)
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData // nil entry = unusable robots.txt
	group singleflight.Group
}

func newRobotsAuditor(fetch func(context.Context, string) (int, []byte, error), logger *slog.Logger) *robotsAuditor {
	return &robotsAuditor{
		fetch:  fetch,
		logger: logger,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// isAllowed reports whether the agent may fetch the target URL per the
// host's robots.txt. Unfetchable or unparsable robots.txt fails open.
func (r *robotsAuditor) isAllowed(ctx context.Context, target, agent string) (bool, error) {
	u, err := url.Parse(target)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}
	host := u.Scheme + "://" + u.Host

	data, err := r.lookup(ctx, host)
	if err != nil {
		return false, err
	}
	if data == nil {
		return true, nil
	}
	return data.FindGroup(agent).Test(u.Path), nil
}

func (r *robotsAuditor) lookup(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		status, body, err := r.fetch(ctx, host+"/robots.txt")
		if err != nil {
			return nil, fmt.Errorf("fetch robots.txt: %w", err)
		}

		var parsed *robotstxt.RobotsData
		if status < 400 {
			parsed, err = robotstxt.FromBytes(body)
			if err != nil {
				r.logger.Debug("unparsable robots.txt, failing open", "host", host, "err", err)
				parsed = nil
			}
		}

		r.mu.Lock()
		r.cache[host] = parsed
		r.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*robotstxt.RobotsData), nil
}
