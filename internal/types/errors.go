package types

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNoAddressAvailable indicates no eligible address exists for a hostname.
	// The transport treats this as immediately fatal, never retried.
	ErrNoAddressAvailable = errors.New("no address available")

	// ErrRetriesExhausted indicates every attempt in the retry budget failed
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvalidConfiguration indicates invalid configuration
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrCertificateRejected indicates the peer certificate failed the
	// relaxed validation policy
	ErrCertificateRejected = errors.New("certificate rejected")

	// ErrMalformedResponse indicates the wire response could not be parsed
	ErrMalformedResponse = errors.New("malformed response")
)

// TransportError wraps an error with the operation and endpoint involved
type TransportError struct {
	Op       string // Operation that failed
	Hostname string // Logical hostname of the request
	Address  string // Candidate address involved, if any
	Err      error  // Original error
}

func (e *TransportError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Hostname, e.Address, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Hostname, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
