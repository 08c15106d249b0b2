// Package metrics exports prometheus series for the sidedoor transport
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector tracks transport and probe outcomes
type Collector struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	probesTotal     *prometheus.CounterVec
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	c := &Collector{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidedoor_attempts_total",
				Help: "Total connection attempts by outcome",
			},
			[]string{"hostname", "address", "result"},
		),

		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidedoor_attempt_duration_seconds",
				Help:    "Connection attempt duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"hostname", "result"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidedoor_retries_total",
				Help: "Total cross-address retries",
			},
			[]string{"hostname"},
		),

		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidedoor_probes_total",
				Help: "Total reachability probes by outcome",
			},
			[]string{"address", "result"},
		),
	}

	// Register Prometheus metrics - ignore errors if already registered
	_ = prometheus.Register(c.attemptsTotal)
	_ = prometheus.Register(c.attemptDuration)
	_ = prometheus.Register(c.retriesTotal)
	_ = prometheus.Register(c.probesTotal)

	return c
}

// RecordAttempt records one connection attempt outcome
func (c *Collector) RecordAttempt(hostname, address string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.attemptsTotal.WithLabelValues(hostname, address, result).Inc()
	c.attemptDuration.WithLabelValues(hostname, result).Observe(duration.Seconds())
}

// RecordRetry records one cross-address retry
func (c *Collector) RecordRetry(hostname string) {
	c.retriesTotal.WithLabelValues(hostname).Inc()
}

// RecordProbe records one reachability probe outcome
func (c *Collector) RecordProbe(address string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.probesTotal.WithLabelValues(address, result).Inc()
}
