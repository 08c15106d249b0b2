// Package balancer implements per-request address selection for sidedoor
package balancer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sidedoor/internal/types"
)

// Weight bounds and adjustments
const (
	MinWeight     = 10
	MaxWeight     = 200
	InitialWeight = 100

	fastSuccessBonus = 2
	slowSuccessBonus = 1
	failurePenalty   = 10

	fastSuccessCutoff = time.Second
)

// Candidate is one eligible address with the state strategies select on
type Candidate struct {
	Addr      string
	Healthy   bool
	Failures  int
	Weight    int64
	Active    int64
	HasRecord bool
}

// Strategy picks one candidate from a non-empty eligible list
type Strategy interface {
	Pick(hostname string, candidates []Candidate) string
}

// weightRecord holds the desirability score and in-flight counter for one
// address. Both fields are accessed with atomics only.
type weightRecord struct {
	weight int64
	active int64
}

// Balancer owns all weight records and round-robin cursors for one
// configuration. It consults the health view read-only.
type Balancer struct {
	health   types.HealthView
	strategy Strategy
	logger   types.Logger

	hosts map[string][]string

	mu      sync.RWMutex
	weights map[string]*weightRecord
}

// New creates a balancer with weight records for every configured address
func New(cfg *types.Config, health types.HealthView, logger types.Logger) (*Balancer, error) {
	strategy, err := newStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	b := &Balancer{
		health:   health,
		strategy: strategy,
		logger:   logger,
		hosts:    make(map[string][]string, len(cfg.Hosts)),
		weights:  make(map[string]*weightRecord),
	}

	for hostname, addrs := range cfg.Hosts {
		b.hosts[hostname] = append([]string(nil), addrs...)
		for _, addr := range addrs {
			if _, exists := b.weights[addr]; !exists {
				b.weights[addr] = &weightRecord{weight: InitialWeight}
			}
		}
	}

	return b, nil
}

func newStrategy(name string) (Strategy, error) {
	switch name {
	case types.StrategyRoundRobin:
		return NewRoundRobin(), nil
	case types.StrategyHealthyFirst, "":
		return NewHealthyFirst(), nil
	case types.StrategyWeightedRoundRobin:
		return NewWeightedRoundRobin(), nil
	case types.StrategyLeastConnections:
		return NewLeastConnections(), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", types.ErrInvalidConfiguration, name)
	}
}

// Select returns the best address for the hostname under the configured
// strategy. An empty eligible list is immediately fatal for the caller.
func (b *Balancer) Select(hostname string) (string, error) {
	eligible := b.health.EligibleAddresses(hostname)
	if len(eligible) == 0 {
		return "", types.ErrNoAddressAvailable
	}

	candidates := make([]Candidate, len(eligible))
	for i, addr := range eligible {
		c := Candidate{Addr: addr, Healthy: true}

		if status, ok := b.health.Status(addr); ok {
			c.Healthy = status.Healthy
			c.Failures = status.ConsecutiveFailures
		}

		if rec := b.getRecord(addr); rec != nil {
			c.Weight = atomic.LoadInt64(&rec.weight)
			c.Active = atomic.LoadInt64(&rec.active)
			c.HasRecord = true
		}

		candidates[i] = c
	}

	return b.strategy.Pick(hostname, candidates), nil
}

// IncrementConnection brackets the start of one connection attempt
func (b *Balancer) IncrementConnection(addr string) {
	if rec := b.getOrCreateRecord(addr); rec != nil {
		atomic.AddInt64(&rec.active, 1)
	}
}

// DecrementConnection brackets the end of one connection attempt. Callers
// must pair it with IncrementConnection, including on failure paths.
func (b *Balancer) DecrementConnection(addr string) {
	if rec := b.getRecord(addr); rec != nil {
		if n := atomic.AddInt64(&rec.active, -1); n < 0 {
			atomic.StoreInt64(&rec.active, 0)
		}
	}
}

// UpdateWeight adjusts the address weight after an attempt. The load/store
// pair races benignly with concurrent updates; weights are a heuristic.
func (b *Balancer) UpdateWeight(addr string, success bool, elapsed time.Duration) {
	rec := b.getOrCreateRecord(addr)

	current := atomic.LoadInt64(&rec.weight)
	next := current
	if success {
		if elapsed < fastSuccessCutoff {
			next += fastSuccessBonus
		} else {
			next += slowSuccessBonus
		}
		if next > MaxWeight {
			next = MaxWeight
		}
	} else {
		next -= failurePenalty
		if next < MinWeight {
			next = MinWeight
		}
	}
	atomic.StoreInt64(&rec.weight, next)
}

// Snapshot returns a read-only diagnostic view of every configured
// hostname/address pair
func (b *Balancer) Snapshot() []types.AddressStats {
	var stats []types.AddressStats

	for hostname, addrs := range b.hosts {
		for _, addr := range addrs {
			row := types.AddressStats{
				Hostname: hostname,
				Address:  addr,
				Healthy:  true,
				Weight:   InitialWeight,
			}

			if status, ok := b.health.Status(addr); ok {
				row.Healthy = status.Healthy
				row.ConsecutiveFailures = status.ConsecutiveFailures
				row.LastFailure = status.LastFailure
				row.LastSuccess = status.LastSuccess
			}

			if rec := b.getRecord(addr); rec != nil {
				row.Weight = atomic.LoadInt64(&rec.weight)
				row.CurrentConnections = atomic.LoadInt64(&rec.active)
			}

			stats = append(stats, row)
		}
	}

	return stats
}

func (b *Balancer) getRecord(addr string) *weightRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.weights[addr]
}

func (b *Balancer) getOrCreateRecord(addr string) *weightRecord {
	b.mu.RLock()
	rec, exists := b.weights[addr]
	b.mu.RUnlock()

	if exists {
		return rec
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, exists := b.weights[addr]; exists {
		return rec
	}

	rec = &weightRecord{weight: InitialWeight}
	b.weights[addr] = rec

	return rec
}
