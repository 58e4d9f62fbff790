package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"ipnotify/internal/logger"
	"ipnotify/internal/notify"
	"ipnotify/internal/resolver"
	"ipnotify/internal/retry"
	"ipnotify/internal/state"
	"ipnotify/internal/types"
	"ipnotify/internal/validator"

	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidConfig wraps every configuration error returned by Load
var ErrInvalidConfig = types.ErrInvalidConfig

// Config represents the daemon configuration
type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Check    CheckConfig    `mapstructure:"check"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Notify   notify.Config  `mapstructure:"notify"`
	State    state.Config   `mapstructure:"state"`
	Log      logger.Config  `mapstructure:"log"`
	Status   StatusConfig   `mapstructure:"status"`

	// Targets is parsed from Discord.Webhooks by Load
	Targets []notify.Target `mapstructure:"-"`
	// Sources is parsed from Resolver.Sources by Load
	Sources []resolver.Source `mapstructure:"-"`
}

// DiscordConfig represents the webhook configuration
type DiscordConfig struct {
	Webhooks []string `mapstructure:"webhooks"`
}

// CheckConfig represents the polling schedule
type CheckConfig struct {
	Interval     int    `mapstructure:"interval" validate:"gt=0"`
	IntervalUnit string `mapstructure:"interval_unit" validate:"interval_unit"`
}

// ResolverConfig represents the address source configuration
type ResolverConfig struct {
	Sources []string      `mapstructure:"sources"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retry   retry.Config  `mapstructure:"retry"`
}

// StatusConfig represents the optional status server
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

var unitDurations = map[string]time.Duration{
	"seconds": time.Second,
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
}

// Duration returns the check interval as a duration
func (c CheckConfig) Duration() time.Duration {
	return time.Duration(c.Interval) * unitDurations[c.IntervalUnit]
}

// ResolverOptions builds the resolver configuration
func (c *Config) ResolverOptions() resolver.Config {
	return resolver.Config{
		Sources: c.Sources,
		Timeout: c.Resolver.Timeout,
		Retry:   c.Resolver.Retry,
	}
}

// setDefaults registers a default for every key so that AutomaticEnv
// can bind all of them during Unmarshal
func setDefaults(v *viper.Viper) {
	var sources []string
	for _, s := range resolver.DefaultSources() {
		sources = append(sources, s.String())
	}
	retryDef := retry.DefaultRetryConfig()
	stateDef := state.DefaultConfig()
	logDef := logger.DefaultConfig()

	v.SetDefault("discord.webhooks", []string{})

	v.SetDefault("check.interval", 1)
	v.SetDefault("check.interval_unit", "minutes")

	v.SetDefault("resolver.sources", sources)
	v.SetDefault("resolver.timeout", 10*time.Second)
	v.SetDefault("resolver.retry.attempts", retryDef.Attempts)
	v.SetDefault("resolver.retry.initial_interval", retryDef.InitialInterval)
	v.SetDefault("resolver.retry.max_interval", retryDef.MaxInterval)

	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.username", "")
	v.SetDefault("notify.avatar_url", "")

	v.SetDefault("state.backend", stateDef.Backend)
	v.SetDefault("state.file", stateDef.File)
	v.SetDefault("state.dsn", stateDef.DSN)
	v.SetDefault("state.redis.addr", stateDef.Redis.Addr)
	v.SetDefault("state.redis.password", "")
	v.SetDefault("state.redis.db", 0)
	v.SetDefault("state.redis.key", stateDef.Redis.Key)
	v.SetDefault("state.redis.dial_timeout", stateDef.Redis.DialTimeout)

	v.SetDefault("log.level", logDef.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", logDef.MaxSize)
	v.SetDefault("log.max_backups", logDef.MaxBackups)
	v.SetDefault("log.max_age", logDef.MaxAge)
	v.SetDefault("log.compress", false)

	v.SetDefault("status.addr", "")
}

// Load reads the configuration from the environment and, when path is set,
// a YAML file. Environment variables override the file. Without a path,
// ipnotify.yaml is picked up from the search paths if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(InDot)
		v.AddConfigPath(InHome)
		v.AddConfigPath(InEtc)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &cfg, nil
}

// normalize cleans user input and parses webhook and source definitions
func (c *Config) normalize() error {
	c.Check.IntervalUnit = cases.Lower(language.Und).String(strings.TrimSpace(c.Check.IntervalUnit))
	c.State.Backend = cases.Lower(language.Und).String(strings.TrimSpace(c.State.Backend))
	c.Log.Level = cases.Lower(language.Und).String(strings.TrimSpace(c.Log.Level))

	c.Targets = notify.ParseTargets(c.Discord.Webhooks)

	sources, err := resolver.ParseSources(c.Resolver.Sources)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		sources = resolver.DefaultSources()
	}
	c.Sources = sources
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	unit := unitDurations[c.Check.IntervalUnit]
	if int64(c.Check.Interval) > math.MaxInt64/int64(unit) {
		return fmt.Errorf("check interval of %d %s is too large", c.Check.Interval, c.Check.IntervalUnit)
	}

	if err := c.Resolver.Retry.Validate(); err != nil {
		return fmt.Errorf("resolver.retry: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	for i, t := range c.Targets {
		if err := v.Var(t.URL, "required,http_url"); err != nil {
			return fmt.Errorf("discord webhook %d (%s) is not a valid URL", i+1, t.Label)
		}
	}
	for _, s := range c.Sources {
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("resolver source %s: %w", s, err)
		}
	}

	return nil
}
