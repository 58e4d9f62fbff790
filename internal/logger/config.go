package logger

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config represents logging configuration
type Config struct {
	Level      string `mapstructure:"level"` // debug, info, warn, error
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns the default logging configuration, console only
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

// SetDefaults returns a copy of cfg with zero values replaced by defaults
func (cfg *Config) SetDefaults() *Config {
	def := DefaultConfig()
	out := *cfg
	if out.Level == "" {
		out.Level = def.Level
	}
	if out.MaxSize == 0 {
		out.MaxSize = def.MaxSize
	}
	if out.MaxBackups == 0 {
		out.MaxBackups = def.MaxBackups
	}
	if out.MaxAge == 0 {
		out.MaxAge = def.MaxAge
	}
	return &out
}

// Validate validates logging configuration
func (cfg *Config) Validate() error {
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive")
	}
	_, err := cfg.zapLevel()
	return err
}

// zapLevel maps Level onto a zap level. Only the four levels the
// daemon logs at are accepted.
func (cfg *Config) zapLevel() (zapcore.Level, error) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
		return zapcore.ParseLevel(cfg.Level)
	}
	return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", cfg.Level)
}
