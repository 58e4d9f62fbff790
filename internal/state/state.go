package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend names
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned by New for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown state backend")

// Store persists the last known address.
// Read returns ok == false with a nil error when nothing has been stored yet.
type Store interface {
	Read(ctx context.Context) (addr string, ok bool, err error)
	Write(ctx context.Context, addr string) error
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Backend string      `mapstructure:"backend" validate:"oneof=file sqlite redis"`
	File    string      `mapstructure:"file"`
	DSN     string      `mapstructure:"dsn"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig represents the redis backend configuration
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Key         string        `mapstructure:"key"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// DefaultConfig returns the default state configuration
func DefaultConfig() Config {
	return Config{
		Backend: BackendFile,
		File:    "previous_ip.txt",
		DSN:     "ipnotify.db",
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			Key:         "ipnotify:last_ip",
			DialTimeout: 5 * time.Second,
		},
	}
}

// New opens the configured backend
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.File), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.DSN, logger)
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
