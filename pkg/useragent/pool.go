package useragent

import (
	"math/rand"
	"sync/atomic"
)

// defaultAgents is a set of current desktop browser User-Agents. Search
// engines serve degraded or challenge pages to unknown agents, so the
// defaults track mainstream browser releases.
var defaultAgents = []string{
	// Chrome
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	// Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
	// Safari
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	// Edge
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
}

// Pool hands out User-Agent strings, either round-robin or at random.
// It is safe for concurrent use.
type Pool struct {
	agents []string
	next   atomic.Uint64
}

// NewPool builds a pool from the given agents, falling back to the
// package defaults when the slice is empty. The input is copied.
func NewPool(agents []string) *Pool {
	if len(agents) == 0 {
		agents = defaultAgents
	}
	p := &Pool{agents: make([]string, len(agents))}
	copy(p.agents, agents)
	return p
}

// Next returns the next agent in round-robin order.
func (p *Pool) Next() string {
	idx := p.next.Add(1) - 1
	return p.agents[idx%uint64(len(p.agents))]
}

// Random returns a uniformly random agent from the pool.
func (p *Pool) Random() string {
	return p.agents[rand.Intn(len(p.agents))]
}

// Len reports the number of agents in the pool.
func (p *Pool) Len() int {
	return len(p.agents)
}
