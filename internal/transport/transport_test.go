package transport_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	crand "crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidedoor/internal/balancer"
	"sidedoor/internal/health"
	"sidedoor/internal/logging"
	"sidedoor/internal/transport"
	"sidedoor/internal/types"
)

func testConfig(hosts map[string][]string, maxRetries int) *types.Config {
	return &types.Config{
		Hosts:        hosts,
		Timeout:      2 * time.Second,
		RetryEnabled: true,
		MaxRetries:   maxRetries,
		Strategy:     types.StrategyHealthyFirst,
	}
}

func noProbe() types.Prober {
	return types.ProbeFunc(func(ctx context.Context, addr string) error {
		return errors.New("probing disabled in tests")
	})
}

// startServer serves one canned response per connection and closes
func startServer(t *testing.T, response string) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveOnce(conn, response)
		}
	}()

	return ln
}

func serveOnce(conn net.Conn, response string) {
	defer conn.Close()

	// Drain the request headers before answering
	buf := make([]byte, 4096)
	var got []byte
	for {
		n, err := conn.Read(buf)
		got = append(got, buf[:n]...)
		if bytes.Contains(got, []byte("\r\n\r\n")) || err != nil {
			break
		}
	}

	conn.Write([]byte(response))
}

func newStack(t *testing.T, cfg *types.Config, dial transport.DialFunc) (*transport.Transport, *health.Registry, *balancer.Balancer) {
	t.Helper()

	logger := logging.NewNop()
	registry := health.NewRegistry(cfg, noProbe(), nil, logger)

	lb, err := balancer.New(cfg, registry, logger)
	require.NoError(t, err)

	tr := transport.New(transport.Options{
		Config:   cfg,
		Health:   registry,
		Balancer: lb,
		Logger:   logger,
		Dial:     dial,
	})

	return tr, registry, lb
}

func TestExecuteRetriesAcrossAddresses(t *testing.T) {
	ln := startServer(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello")

	cfg := testConfig(map[string][]string{
		"example.test": {"10.0.0.1", "10.0.0.2"},
	}, 2)

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		require.NoError(t, err)
		if host == "10.0.0.1" {
			return nil, errors.New("connection refused")
		}
		var d net.Dialer
		return d.DialContext(ctx, network, ln.Addr().String())
	}

	tr, registry, lb := newStack(t, cfg, dial)

	resp, err := tr.Execute(context.Background(), &types.Request{URL: "http://example.test/resource"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "hello", string(resp.Body))

	t.Run("Failed address is penalized", func(t *testing.T) {
		status, ok := registry.Status("10.0.0.1")
		require.True(t, ok)
		assert.False(t, status.Healthy)
		assert.Equal(t, 1, status.ConsecutiveFailures)
	})

	t.Run("Snapshot reflects both outcomes", func(t *testing.T) {
		rows := make(map[string]types.AddressStats)
		for _, row := range lb.Snapshot() {
			rows[row.Address] = row
		}

		assert.False(t, rows["10.0.0.1"].Healthy)
		assert.EqualValues(t, 90, rows["10.0.0.1"].Weight)

		assert.True(t, rows["10.0.0.2"].Healthy)
		assert.GreaterOrEqual(t, rows["10.0.0.2"].Weight, int64(101))
	})

	t.Run("Connection counters returned to zero", func(t *testing.T) {
		for _, row := range lb.Snapshot() {
			assert.Zero(t, row.CurrentConnections, row.Address)
		}
	})
}

func TestExecuteUnknownHostnameIsFatal(t *testing.T) {
	var dials atomic.Int64
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		return nil, errors.New("must not be called")
	}

	cfg := testConfig(map[string][]string{"example.test": {"10.0.0.1"}}, 3)
	tr, _, _ := newStack(t, cfg, dial)

	_, err := tr.Execute(context.Background(), &types.Request{URL: "http://missing.test/"})
	assert.ErrorIs(t, err, types.ErrNoAddressAvailable)
	assert.Zero(t, dials.Load(), "no socket attempt may happen without an address")
}

func TestExecuteExhaustsRetries(t *testing.T) {
	cause := errors.New("connection refused")
	var dials atomic.Int64

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		return nil, cause
	}

	cfg := testConfig(map[string][]string{"example.test": {"10.0.0.1", "10.0.0.2"}}, 2)
	tr, _, _ := newStack(t, cfg, dial)

	_, err := tr.Execute(context.Background(), &types.Request{URL: "http://example.test/"})
	assert.ErrorIs(t, err, types.ErrRetriesExhausted)
	assert.ErrorIs(t, err, cause)
	assert.EqualValues(t, 2, dials.Load())
}

func TestExecuteRetryDisabledMeansOneAttempt(t *testing.T) {
	var dials atomic.Int64
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		return nil, errors.New("refused")
	}

	cfg := testConfig(map[string][]string{"example.test": {"10.0.0.1", "10.0.0.2"}}, 5)
	cfg.RetryEnabled = false

	tr, _, _ := newStack(t, cfg, dial)

	_, err := tr.Execute(context.Background(), &types.Request{URL: "http://example.test/"})
	assert.Error(t, err)
	assert.EqualValues(t, 1, dials.Load())
}

func TestExecuteBackoffIsCancellable(t *testing.T) {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("refused")
	}

	cfg := testConfig(map[string][]string{"example.test": {"10.0.0.1", "10.0.0.2"}}, 3)
	tr, _, _ := newStack(t, cfg, dial)

	// The first backoff is 100ms; the context expires well before that
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tr.Execute(ctx, &types.Request{URL: "http://example.test/"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 90*time.Millisecond)
}

func TestExecuteChunkedResponse(t *testing.T) {
	ln := startServer(t, "HTTP/1.1 200 OK\r\n"+
		"Transfer-Encoding: chunked\r\n"+
		"\r\n"+
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n")

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, ln.Addr().String())
	}

	cfg := testConfig(map[string][]string{"example.test": {"10.0.0.1"}}, 1)
	tr, _, _ := newStack(t, cfg, dial)

	resp, err := tr.Execute(context.Background(), &types.Request{URL: "http://example.test/page"})
	require.NoError(t, err)
	assert.Equal(t, "Wikipedia", string(resp.Body))
}

func TestExecuteTLSWithEmptySNI(t *testing.T) {
	cert := selfSignedCert(t)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveOnce(conn, "HTTP/1.1 200 OK\r\n\r\nsecure")
		}
	}()

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, ln.Addr().String())
	}

	cfg := testConfig(map[string][]string{"example.test": {"10.0.0.1"}}, 1)

	logger := logging.NewNop()
	registry := health.NewRegistry(cfg, noProbe(), nil, logger)
	lb, err := balancer.New(cfg, registry, logger)
	require.NoError(t, err)

	tr := transport.New(transport.Options{
		Config:   cfg,
		Health:   registry,
		Balancer: lb,
		Logger:   logger,
		Dial:     dial,
		// The test certificate is self-signed; accept it regardless of
		// policy errors to exercise the handshake path itself
		Verify: func(policyErrs []error, subject, expectedDomain string) bool {
			return true
		},
	})

	resp, err := tr.Execute(context.Background(), &types.Request{URL: "https://example.test/secret"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "secure", string(resp.Body))
}

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), crand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "content.example.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(crand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
}
