package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
)

// handshake negotiates TLS over an already-open connection. SNI is left
// empty so the name never appears in the ClientHello, and certificate
// verification runs through the injectable policy instead of the default
// name-based check.
func (t *Transport) handshake(ctx context.Context, conn net.Conn, hostname string) (*tls.Conn, error) {
	timeout := t.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName: "",
		MinVersion: tls.VersionTLS12,
		// Verification happens in VerifyPeerCertificate; the built-in check
		// would reject the inherent name mismatch of dialing by address
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeer(rawCerts, hostname, t.verify)
		},
	})

	handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
		return nil, err
	}

	return tlsConn, nil
}
