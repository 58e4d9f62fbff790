package retry

import (
	"encoding/json"
	"errors"
	"time"
)

// Config defines the connection retry policy used for upstream requests.
type Config struct {
	Attempts        int           `mapstructure:"attempts"`         // Total attempts, including the first
	InitialInterval time.Duration `mapstructure:"initial_interval"` // Wait before the second attempt
	MaxInterval     time.Duration `mapstructure:"max_interval"`     // Upper bound for a single wait
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *Config {
	return &Config{
		Attempts:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     4 * time.Second,
	}
}

// Validate validates the retry configuration.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.Attempts <= 0 {
		return errors.New("attempts must be greater than zero")
	}
	if cfg.InitialInterval < 0 || cfg.MaxInterval < 0 {
		return errors.New("intervals cannot be negative")
	}
	if cfg.InitialInterval > cfg.MaxInterval {
		return errors.New("max_interval must not be less than initial_interval")
	}
	return nil
}

// String returns a JSON string representation of the Config.
func (cfg *Config) String() string {
	data, _ := json.Marshal(cfg)
	return string(data)
}
