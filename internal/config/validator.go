package config

import (
	"fmt"
	"net"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"sidedoor/internal/types"
)

// Validate checks a configuration for structural problems before any
// component is built from it
func Validate(cfg *types.Config) error {
	err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Hosts, validation.Required.Error("at least one hostname must be configured")),
		validation.Field(&cfg.Strategy,
			validation.Required,
			validation.In(toInterfaces(types.Strategies())...).Error("unknown strategy"),
		),
		validation.Field(&cfg.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&cfg.MaxRetries, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidConfiguration, err)
	}

	if cfg.RetryEnabled && cfg.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries must be at least 1 when retries are enabled", types.ErrInvalidConfiguration)
	}

	for hostname, addrs := range cfg.Hosts {
		if hostname == "" {
			return fmt.Errorf("%w: empty hostname", types.ErrInvalidConfiguration)
		}
		if len(addrs) == 0 {
			return fmt.Errorf("%w: hostname %q has no candidate addresses", types.ErrInvalidConfiguration, hostname)
		}
		for _, addr := range addrs {
			if net.ParseIP(addr) == nil {
				return fmt.Errorf("%w: %q is not a numeric address (hostname %q)", types.ErrInvalidConfiguration, addr, hostname)
			}
		}
	}

	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
