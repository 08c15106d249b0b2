// Package transport implements the direct-address HTTP/1.1 transport: it
// selects a candidate address per request, dials and frames the request
// itself, and retries across addresses on failure.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"sidedoor/internal/metrics"
	"sidedoor/internal/types"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second

	retryBackoffStep = 100 * time.Millisecond
)

// DialFunc opens a raw byte-stream connection
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Options configures a Transport
type Options struct {
	Config    *types.Config
	Health    types.HealthReporter
	Balancer  types.Selector
	Logger    types.Logger
	Collector *metrics.Collector // optional
	Verify    VerifyPolicy       // defaults to RelaxedVerifyPolicy
	Dial      DialFunc           // defaults to a net.Dialer
}

// Transport executes logical requests against statically configured
// candidate addresses. Safe for concurrent use; every call owns its own
// socket and buffers.
type Transport struct {
	cfg       *types.Config
	health    types.HealthReporter
	balancer  types.Selector
	logger    types.Logger
	collector *metrics.Collector
	verify    VerifyPolicy
	dial      DialFunc

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New creates a transport from options, filling in defaults
func New(opts Options) *Transport {
	t := &Transport{
		cfg:       opts.Config,
		health:    opts.Health,
		balancer:  opts.Balancer,
		logger:    opts.Logger,
		collector: opts.Collector,
		verify:    opts.Verify,
		dial:      opts.Dial,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}

	if t.verify == nil {
		t.verify = RelaxedVerifyPolicy
	}
	if t.dial == nil {
		dialer := &net.Dialer{}
		t.dial = dialer.DialContext
	}

	return t
}

// Execute sends one request and returns the parsed response. Transient
// per-address failures are absorbed and retried on other addresses; only
// final exhaustion surfaces to the caller.
func (t *Transport) Execute(ctx context.Context, req *types.Request) (*types.RawResponse, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &types.TransportError{Op: "parse url", Hostname: req.URL, Err: err}
	}

	hostname := u.Hostname()
	secure := u.Scheme == "https"
	port := u.Port()
	if port == "" {
		if secure {
			port = "443"
		} else {
			port = "80"
		}
	}

	if cb := t.breakerFor(hostname); cb != nil {
		result, err := cb.Execute(func() (interface{}, error) {
			return t.executeDirect(ctx, u, hostname, port, secure, req)
		})
		if err != nil {
			return nil, err
		}
		return result.(*types.RawResponse), nil
	}

	return t.executeDirect(ctx, u, hostname, port, secure, req)
}

func (t *Transport) executeDirect(ctx context.Context, u *url.URL, hostname, port string, secure bool, req *types.Request) (*types.RawResponse, error) {
	log := t.logger.With("request_id", uuid.NewString(), "hostname", hostname)

	budget := t.cfg.RetryBudget()
	var lastErr error

	for attempt := 0; attempt < budget; attempt++ {
		addr, err := t.balancer.Select(hostname)
		if err != nil {
			// No eligible address is fatal, never retried
			return nil, &types.TransportError{Op: "select", Hostname: hostname, Err: err}
		}

		t.balancer.IncrementConnection(addr)
		start := time.Now()
		resp, err := t.attempt(ctx, addr, port, secure, hostname, u.RequestURI(), req)
		elapsed := time.Since(start)
		t.balancer.DecrementConnection(addr)

		if t.collector != nil {
			t.collector.RecordAttempt(hostname, addr, err == nil, elapsed)
		}

		if err == nil {
			t.health.MarkHealthy(addr)
			t.balancer.UpdateWeight(addr, true, elapsed)
			log.Debug("request completed",
				"address", addr,
				"status", resp.StatusCode,
				"elapsed", elapsed,
			)
			return resp, nil
		}

		t.health.MarkUnhealthy(addr, err)
		t.balancer.UpdateWeight(addr, false, elapsed)
		lastErr = err

		log.Warn("attempt failed",
			"address", addr,
			"attempt", attempt+1,
			"error", err,
		)

		if attempt == budget-1 {
			break
		}

		if t.collector != nil {
			t.collector.RecordRetry(hostname)
		}

		if err := sleepContext(ctx, time.Duration(attempt+1)*retryBackoffStep); err != nil {
			return nil, &types.TransportError{Op: "backoff", Hostname: hostname, Err: err}
		}
	}

	return nil, &types.TransportError{
		Op:       "execute",
		Hostname: hostname,
		Err:      fmt.Errorf("%w: %w", types.ErrRetriesExhausted, lastErr),
	}
}

// attempt performs one full request/response exchange with a single address
func (t *Transport) attempt(ctx context.Context, addr, port string, secure bool, hostname, requestURI string, req *types.Request) (*types.RawResponse, error) {
	timeout := t.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := t.dial(attemptCtx, "tcp", net.JoinHostPort(addr, port))
	if err != nil {
		return nil, &types.TransportError{Op: "dial", Hostname: hostname, Address: addr, Err: err}
	}
	defer conn.Close()

	// Cancellation closes the socket so blocked reads and writes unwind
	// promptly instead of leaking until their deadline
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-attemptCtx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	if deadline, ok := attemptCtx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, &types.TransportError{Op: "deadline", Hostname: hostname, Address: addr, Err: err}
		}
	}

	stream := io.ReadWriter(conn)
	if secure {
		tlsConn, err := t.handshake(attemptCtx, conn, hostname)
		if err != nil {
			return nil, &types.TransportError{Op: "handshake", Hostname: hostname, Address: addr, Err: err}
		}
		stream = tlsConn
	}

	if _, err := stream.Write(serializeRequest(req, hostname, requestURI)); err != nil {
		return nil, &types.TransportError{Op: "write", Hostname: hostname, Address: addr, Err: err}
	}

	raw, err := readRawResponse(stream)
	if err != nil {
		return nil, &types.TransportError{Op: "read", Hostname: hostname, Address: addr, Err: err}
	}

	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, &types.TransportError{Op: "parse", Hostname: hostname, Address: addr, Err: err}
	}

	if t.cfg.DecompressResponse {
		if err := decompressBody(resp); err != nil {
			return nil, &types.TransportError{Op: "decompress", Hostname: hostname, Address: addr, Err: err}
		}
	}

	return resp, nil
}

// readRawResponse reads until the peer closes the stream. The body is
// close-delimited on this path, so EOF is the expected terminator; abrupt
// closes are tolerated once the header separator has been seen.
func readRawResponse(r io.Reader) ([]byte, error) {
	var buf []byte
	tmp := make([]byte, 4096)
	separatorSeen := false

	for {
		n, err := r.Read(tmp)
		buf = append(buf, tmp[:n]...)

		if !separatorSeen {
			separatorSeen = hasHeaderSeparator(buf)
		}

		if err != nil {
			if errors.Is(err, io.EOF) || separatorSeen {
				break
			}
			return nil, err
		}
	}

	if !hasHeaderSeparator(buf) {
		return nil, fmt.Errorf("%w: missing header separator", types.ErrMalformedResponse)
	}

	return buf, nil
}

func hasHeaderSeparator(b []byte) bool {
	return bytes.Contains(b, []byte("\r\n\r\n")) || bytes.Contains(b, []byte("\n\n"))
}

// breakerFor returns the per-hostname circuit breaker, or nil when disabled
func (t *Transport) breakerFor(hostname string) *gobreaker.CircuitBreaker {
	if !t.cfg.CircuitBreaker.Enabled {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cb, exists := t.breakers[hostname]
	if !exists {
		threshold := t.cfg.CircuitBreaker.FailureThreshold
		if threshold == 0 {
			threshold = 5
		}
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    hostname,
			Timeout: t.cfg.CircuitBreaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		})
		t.breakers[hostname] = cb
	}

	return cb
}

// sleepContext pauses for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
