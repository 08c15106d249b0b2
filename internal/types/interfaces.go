package types

import (
	"context"
	"time"
)

// HealthView is the read-only view of address health the load balancer consults
type HealthView interface {
	// EligibleAddresses returns the configured addresses for a hostname,
	// healthy ones first in configuration order, then unhealthy-but-retryable
	// ones in configuration order. Unknown hostnames yield nil.
	EligibleAddresses(hostname string) []string
	// Status returns the health record for an address, if one exists
	Status(addr string) (HealthStatus, bool)
}

// HealthReporter receives connection outcomes from the transport
type HealthReporter interface {
	// MarkHealthy records a successful connection to the address
	MarkHealthy(addr string)
	// MarkUnhealthy records a failed connection to the address
	MarkUnhealthy(addr string, err error)
}

// Selector picks an address per request and owns weight and in-flight counters
type Selector interface {
	// Select returns the best address for the hostname under the configured
	// strategy, or ErrNoAddressAvailable if nothing is eligible
	Select(hostname string) (string, error)
	// IncrementConnection brackets the start of one connection attempt
	IncrementConnection(addr string)
	// DecrementConnection brackets the end of one connection attempt
	DecrementConnection(addr string)
	// UpdateWeight adjusts the address weight after an attempt
	UpdateWeight(addr string, success bool, elapsed time.Duration)
}

// Prober performs one bounded reachability probe against a bare address
type Prober interface {
	Probe(ctx context.Context, addr string) error
}

// ProbeFunc adapts a function to the Prober interface
type ProbeFunc func(ctx context.Context, addr string) error

// Probe implements Prober
func (f ProbeFunc) Probe(ctx context.Context, addr string) error {
	return f(ctx, addr)
}

// Logger provides structured logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}
