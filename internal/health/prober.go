package health

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingProber probes an address with a single ICMP echo request. Addresses
// are numeric, so constructing the pinger never touches DNS.
type PingProber struct {
	timeout    time.Duration
	privileged bool
}

// NewPingProber creates an ICMP prober with the given per-probe bound
func NewPingProber(timeout time.Duration) *PingProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &PingProber{timeout: timeout}
}

// SetPrivileged switches to raw ICMP sockets (requires elevated privileges
// on most systems; the default UDP mode works unprivileged on Linux)
func (p *PingProber) SetPrivileged(privileged bool) {
	p.privileged = privileged
}

// Probe sends one echo request and waits for the reply
func (p *PingProber) Probe(ctx context.Context, addr string) error {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}

	pinger.SetPrivileged(p.privileged)
	pinger.Count = 1
	pinger.Timeout = p.timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}

	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("probe %s: no echo reply", addr)
	}

	return nil
}
