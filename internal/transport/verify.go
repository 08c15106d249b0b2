package transport

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"sidedoor/internal/types"
)

// VerifyPolicy decides whether a peer certificate is acceptable given the
// accumulated policy errors, the leaf subject, and the domain the request
// meant to reach. Injectable so the rule is unit-testable in isolation.
type VerifyPolicy func(policyErrs []error, subject, expectedDomain string) bool

// RelaxedVerifyPolicy accepts a certificate with no policy errors, or one
// whose only error is a hostname mismatch while the leaf subject textually
// contains the target's registrable domain. Connecting by address instead
// of name makes the mismatch inherent; the chain must still verify.
func RelaxedVerifyPolicy(policyErrs []error, subject, expectedDomain string) bool {
	if len(policyErrs) == 0 {
		return true
	}
	if len(policyErrs) != 1 {
		return false
	}

	var hostErr x509.HostnameError
	if !errors.As(policyErrs[0], &hostErr) {
		return false
	}

	domain := RegistrableDomain(expectedDomain)
	if domain == "" {
		return false
	}

	return strings.Contains(strings.ToLower(subject), strings.ToLower(domain))
}

// RegistrableDomain returns the last two DNS labels of a hostname, or the
// hostname itself when it has fewer
func RegistrableDomain(hostname string) string {
	labels := strings.Split(strings.TrimSuffix(hostname, "."), ".")
	if len(labels) < 2 {
		return hostname
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// verifyPeer runs chain and hostname verification on the presented
// certificates and defers the accept/reject decision to the policy
func verifyPeer(rawCerts [][]byte, hostname string, policy VerifyPolicy) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("%w: no certificate presented", types.ErrCertificateRejected)
	}

	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrCertificateRejected, err)
		}
		certs = append(certs, cert)
	}

	leaf := certs[0]
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	// Name verification is separate so the policy can distinguish a pure
	// mismatch from a broken chain
	var policyErrs []error
	if _, err := leaf.Verify(x509.VerifyOptions{Intermediates: intermediates}); err != nil {
		policyErrs = append(policyErrs, err)
	}
	if err := leaf.VerifyHostname(hostname); err != nil {
		policyErrs = append(policyErrs, err)
	}

	if policy(policyErrs, leaf.Subject.String(), hostname) {
		return nil
	}

	return fmt.Errorf("%w: %v", types.ErrCertificateRejected, errors.Join(policyErrs...))
}
