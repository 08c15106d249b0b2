// Package config loads and validates the sidedoor transport configuration
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"sidedoor/internal/types"
)

// yamlTags makes viper decode into the same yaml-tagged fields the config
// files use
func yamlTags(dc *mapstructure.DecoderConfig) {
	dc.TagName = "yaml"
}

// Load reads configuration from the given file (or the standard locations
// when empty), applies SIDEDOOR_* environment overrides, and validates it
func Load(path string, logger types.Logger) (*types.Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sidedoor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sidedoor/")
		v.AddConfigPath("$HOME/.sidedoor")
	}

	v.SetEnvPrefix("SIDEDOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Warn("No config file found, using defaults and environment")
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		logger.Info("Loaded configuration", "file", v.ConfigFileUsed())
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg, yamlTags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromBytes loads configuration from a byte array (for testing)
func LoadFromBytes(data []byte, format string) (*types.Config, error) {
	v := viper.New()
	v.SetConfigType(format)

	setDefaults(v)

	if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg, yamlTags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("handshake_timeout", 10*time.Second)
	v.SetDefault("retry_enabled", true)
	v.SetDefault("max_retries", 3)
	v.SetDefault("strategy", types.StrategyHealthyFirst)
	v.SetDefault("health_check.interval", 30*time.Second)
	v.SetDefault("health_check.timeout", 5*time.Second)
	v.SetDefault("health_check.failure_threshold", 5)
	v.SetDefault("health_check.exclusion_window", 5*time.Minute)
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.timeout", time.Minute)
	v.SetDefault("decompress_response", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}
