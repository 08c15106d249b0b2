package balancer

import (
	"sync"
	"sync/atomic"
)

// roundRobin rotates one cursor per hostname across the eligible list.
// Cursors belong to this instance, so separate configurations never
// interfere with each other.
type roundRobin struct {
	mu      sync.Mutex
	cursors map[string]*uint64
}

// NewRoundRobin creates a round-robin selection strategy
func NewRoundRobin() Strategy {
	return &roundRobin{
		cursors: make(map[string]*uint64),
	}
}

// Pick returns the next candidate in rotation for the hostname
func (rr *roundRobin) Pick(hostname string, candidates []Candidate) string {
	cursor := rr.cursor(hostname)
	count := atomic.AddUint64(cursor, 1)
	index := (count - 1) % uint64(len(candidates))
	return candidates[index].Addr
}

func (rr *roundRobin) cursor(hostname string) *uint64 {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	cursor, exists := rr.cursors[hostname]
	if !exists {
		cursor = new(uint64)
		rr.cursors[hostname] = cursor
	}
	return cursor
}
