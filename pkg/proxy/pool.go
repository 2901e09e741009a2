package proxy

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// entry tracks the health of a single proxy endpoint.
type entry struct {
	u         *url.URL
	failures  int
	benchedTo time.Time
}

// Pool rotates through proxy endpoints, benching ones that keep failing.
// It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	cursor      int
	maxFailures int
	cooldown    time.Duration
}

// Config tunes pool health tracking.
type Config struct {
	// MaxFailures is how many consecutive failures bench a proxy.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out.
	Cooldown time.Duration
}

// NewPool creates an empty pool. Zero config fields get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{maxFailures: cfg.MaxFailures, cooldown: cfg.Cooldown}
}

// LoadFile adds proxies from a file with one URL per line. Blank lines
// and lines starting with '#' are skipped.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := p.Add(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Add parses and registers proxy URLs. A missing scheme defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		p.entries = append(p.entries, &entry{u: u})
	}
	return nil
}

// Next returns the next healthy proxy, or nil when the pool is empty or
// every proxy is benched.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	if n == 0 {
		return nil
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		e := p.entries[p.cursor]
		p.cursor = (p.cursor + 1) % n

		if !e.benchedTo.IsZero() && now.After(e.benchedTo) {
			e.benchedTo = time.Time{}
			e.failures = 0
		}
		if e.benchedTo.IsZero() {
			return e.u
		}
	}
	return nil
}

// MarkSuccess clears the failure streak for the given proxy.
func (p *Pool) MarkSuccess(u *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e := p.find(u); e != nil && e.failures > 0 {
		e.failures--
	}
}

// MarkFailure records a failure; hitting the limit benches the proxy
// for the configured cooldown.
func (p *Pool) MarkFailure(u *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(u)
	if e == nil {
		return
	}
	e.failures++
	if e.failures >= p.maxFailures {
		e.benchedTo = time.Now().Add(p.cooldown)
	}
}

// Len reports the number of registered proxies.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool) find(u *url.URL) *entry {
	if u == nil {
		return nil
	}
	target := u.String()
	for _, e := range p.entries {
		if e.u.String() == target {
			return e
		}
	}
	return nil
}
