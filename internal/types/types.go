// Package types defines the core types and interfaces for the sidedoor transport
package types

import (
	"net/http"
	"time"
)

// Request is a logical HTTP request handed to the transport. The URL must
// be absolute; its hostname is resolved against the configured candidate
// addresses, never DNS.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// RawResponse is the parsed wire response. It is built once per successful
// parse and not mutated afterwards.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HealthStatus is a read-only view of one address's health record
type HealthStatus struct {
	Healthy             bool
	ConsecutiveFailures int
	LastFailure         time.Time
	LastSuccess         time.Time
	LastError           error
}

// AddressStats is one row of the diagnostics snapshot
type AddressStats struct {
	Hostname            string    `json:"hostname"`
	Address             string    `json:"address"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Weight              int64     `json:"weight"`
	CurrentConnections  int64     `json:"current_connections"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
}
