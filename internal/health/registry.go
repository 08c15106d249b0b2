// Package health tracks per-address liveness and runs the recovery probe loop
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sidedoor/internal/metrics"
	"sidedoor/internal/types"
)

const (
	defaultProbeInterval    = 30 * time.Second
	defaultProbeTimeout     = 5 * time.Second
	defaultFailureThreshold = 5
	defaultExclusionWindow  = 5 * time.Minute
)

// record holds the health state of one address. Fields are guarded by mu
// except consecutiveFailures, which is also read lock-free on the hot path.
type record struct {
	mu                  sync.Mutex
	healthy             bool
	consecutiveFailures int32
	lastFailure         time.Time
	lastSuccess         time.Time
	lastErr             error
}

// Registry owns all health records. Records are created at construction,
// default healthy, and never deleted.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record

	hosts            map[string][]string
	prober           types.Prober
	collector        *metrics.Collector
	logger           types.Logger
	interval         time.Duration
	probeTimeout     time.Duration
	failureThreshold int
	exclusionWindow  time.Duration

	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry creates a registry for the configured hostname->address map.
// The collector may be nil.
func NewRegistry(cfg *types.Config, prober types.Prober, collector *metrics.Collector, logger types.Logger) *Registry {
	r := &Registry{
		records:          make(map[string]*record),
		hosts:            make(map[string][]string, len(cfg.Hosts)),
		prober:           prober,
		collector:        collector,
		logger:           logger,
		interval:         cfg.HealthCheck.Interval,
		probeTimeout:     cfg.HealthCheck.Timeout,
		failureThreshold: cfg.HealthCheck.FailureThreshold,
		exclusionWindow:  cfg.HealthCheck.ExclusionWindow,
		now:              time.Now,
		stopCh:           make(chan struct{}),
	}

	if r.interval <= 0 {
		r.interval = defaultProbeInterval
	}
	if r.probeTimeout <= 0 {
		r.probeTimeout = defaultProbeTimeout
	}
	if r.failureThreshold <= 0 {
		r.failureThreshold = defaultFailureThreshold
	}
	if r.exclusionWindow <= 0 {
		r.exclusionWindow = defaultExclusionWindow
	}

	for hostname, addrs := range cfg.Hosts {
		r.hosts[hostname] = append([]string(nil), addrs...)
		for _, addr := range addrs {
			if _, exists := r.records[addr]; !exists {
				r.records[addr] = &record{healthy: true}
			}
		}
	}

	return r
}

// MarkUnhealthy records a failed live connection to the address
func (r *Registry) MarkUnhealthy(addr string, err error) {
	rec := r.getOrCreateRecord(addr)

	rec.mu.Lock()
	rec.healthy = false
	atomic.AddInt32(&rec.consecutiveFailures, 1)
	rec.lastFailure = r.now()
	rec.lastErr = err
	failures := atomic.LoadInt32(&rec.consecutiveFailures)
	rec.mu.Unlock()

	r.logger.Warn("address marked unhealthy",
		"address", addr,
		"consecutive_failures", failures,
		"error", err,
	)
}

// MarkHealthy records a successful connection or probe. Transitioning to
// healthy always resets the failure counter.
func (r *Registry) MarkHealthy(addr string) {
	rec := r.getOrCreateRecord(addr)

	rec.mu.Lock()
	recovered := !rec.healthy
	rec.healthy = true
	atomic.StoreInt32(&rec.consecutiveFailures, 0)
	rec.lastSuccess = r.now()
	rec.lastErr = nil
	rec.mu.Unlock()

	if recovered {
		r.logger.Info("address recovered", "address", addr)
	}
}

// EligibleAddresses returns the hostname's addresses partitioned as healthy
// first, then unhealthy-but-retryable, each in configuration order. An
// unhealthy address is excluded only while its failure count exceeds the
// threshold and its last failure is inside the exclusion window.
func (r *Registry) EligibleAddresses(hostname string) []string {
	r.mu.RLock()
	addrs := r.hosts[hostname]
	r.mu.RUnlock()

	if len(addrs) == 0 {
		return nil
	}

	healthy := make([]string, 0, len(addrs))
	var retryable []string

	for _, addr := range addrs {
		rec := r.getRecord(addr)
		if rec == nil {
			// No record is treated as healthy
			healthy = append(healthy, addr)
			continue
		}

		rec.mu.Lock()
		isHealthy := rec.healthy
		failures := int(atomic.LoadInt32(&rec.consecutiveFailures))
		lastFailure := rec.lastFailure
		rec.mu.Unlock()

		switch {
		case isHealthy:
			healthy = append(healthy, addr)
		case failures > r.failureThreshold && r.now().Sub(lastFailure) < r.exclusionWindow:
			// Circuit-breaker window: excluded until the window elapses
		default:
			retryable = append(retryable, addr)
		}
	}

	return append(healthy, retryable...)
}

// Status returns the health record for an address, if one exists
func (r *Registry) Status(addr string) (types.HealthStatus, bool) {
	rec := r.getRecord(addr)
	if rec == nil {
		return types.HealthStatus{}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return types.HealthStatus{
		Healthy:             rec.healthy,
		ConsecutiveFailures: int(atomic.LoadInt32(&rec.consecutiveFailures)),
		LastFailure:         rec.lastFailure,
		LastSuccess:         rec.lastSuccess,
		LastError:           rec.lastErr,
	}, true
}

// Start launches the background probe loop. It runs until Stop.
func (r *Registry) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.ProbeCycle(context.Background())
			}
		}
	}()
}

// Stop terminates the probe loop and waits for in-flight probes
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// ProbeCycle probes every currently-unhealthy address once, concurrently.
// Probes can only promote an address back to healthy; a probe failure
// leaves the record untouched and never propagates.
func (r *Registry) ProbeCycle(ctx context.Context) {
	var unhealthy []string

	r.mu.RLock()
	for addr, rec := range r.records {
		rec.mu.Lock()
		isHealthy := rec.healthy
		rec.mu.Unlock()
		if !isHealthy {
			unhealthy = append(unhealthy, addr)
		}
	}
	r.mu.RUnlock()

	if len(unhealthy) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, addr := range unhealthy {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			r.probeOne(ctx, addr)
		}(addr)
	}
	wg.Wait()
}

func (r *Registry) probeOne(ctx context.Context, addr string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("probe panicked", "address", addr, "panic", rec)
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	err := r.prober.Probe(probeCtx, addr)
	if r.collector != nil {
		r.collector.RecordProbe(addr, err == nil)
	}

	if err != nil {
		r.logger.Debug("probe failed", "address", addr, "error", err)
		return
	}

	r.MarkHealthy(addr)
}

func (r *Registry) getRecord(addr string) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[addr]
}

func (r *Registry) getOrCreateRecord(addr string) *record {
	r.mu.RLock()
	rec, exists := r.records[addr]
	r.mu.RUnlock()

	if exists {
		return rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check
	if rec, exists := r.records[addr]; exists {
		return rec
	}

	rec = &record{healthy: true}
	r.records[addr] = rec

	return rec
}
