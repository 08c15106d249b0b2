package types

import "time"

// Load balancing strategies
const (
	StrategyRoundRobin         = "round_robin"
	StrategyHealthyFirst       = "healthy_first"
	StrategyWeightedRoundRobin = "weighted"
	StrategyLeastConnections   = "least_conn"
)

// Config is the immutable, caller-supplied transport configuration
type Config struct {
	// Hosts maps a logical hostname to its candidate addresses, in
	// preference order. Addresses are numeric; they are dialed verbatim.
	Hosts map[string][]string `yaml:"hosts"`

	// Timeouts
	Timeout          time.Duration `yaml:"timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// Retry behavior
	RetryEnabled bool `yaml:"retry_enabled"`
	MaxRetries   int  `yaml:"max_retries"`

	// Strategy selects the load balancing algorithm
	Strategy string `yaml:"strategy"` // round_robin, healthy_first, weighted, least_conn

	// Health probing
	HealthCheck struct {
		Interval         time.Duration `yaml:"interval"`
		Timeout          time.Duration `yaml:"timeout"`
		FailureThreshold int           `yaml:"failure_threshold"`
		ExclusionWindow  time.Duration `yaml:"exclusion_window"`
	} `yaml:"health_check"`

	// Circuit breaker (per hostname, off by default)
	CircuitBreaker struct {
		Enabled          bool          `yaml:"enabled"`
		FailureThreshold uint32        `yaml:"failure_threshold"`
		Timeout          time.Duration `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	// DecompressResponse transparently decodes gzip and brotli bodies
	DecompressResponse bool `yaml:"decompress_response"`

	// Logging
	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
}

// Strategies lists the valid strategy names
func Strategies() []string {
	return []string{
		StrategyRoundRobin,
		StrategyHealthyFirst,
		StrategyWeightedRoundRobin,
		StrategyLeastConnections,
	}
}

// RetryBudget returns the number of attempts the transport may make
func (c *Config) RetryBudget() int {
	if !c.RetryEnabled || c.MaxRetries < 1 {
		return 1
	}
	return c.MaxRetries
}
