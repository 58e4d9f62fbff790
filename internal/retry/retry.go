package retry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// NewClient builds a retrying HTTP client that retries connection failures
// only. Responses are handed back as-is whatever their status code.
func NewClient(cfg *Config, timeout time.Duration, logger *zap.Logger) (*retryablehttp.Client, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: cleanhttp.DefaultPooledTransport(),
	}
	c.RetryMax = cfg.Attempts - 1
	c.RetryWaitMin = cfg.InitialInterval
	c.RetryWaitMax = cfg.MaxInterval
	c.Backoff = retryablehttp.DefaultBackoff
	c.CheckRetry = ConnectionErrorsOnly
	c.Logger = NewLeveledLogger(logger)

	return c, nil
}

// ConnectionErrorsOnly is a retryablehttp.CheckRetry that retries transport
// failures and never retries a received response.
func ConnectionErrorsOnly(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	// Defer to the library for errors that a retry cannot fix (bad scheme,
	// redirect loops, certificate errors).
	return retryablehttp.DefaultRetryPolicy(ctx, nil, err)
}

// LeveledLogger adapts zap to retryablehttp.LeveledLogger
type LeveledLogger struct {
	s *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = (*LeveledLogger)(nil)

// NewLeveledLogger wraps logger for retryablehttp
func NewLeveledLogger(logger *zap.Logger) *LeveledLogger {
	return &LeveledLogger{s: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Error is called for every failed attempt, including ones that a later
// retry recovers from, so it is logged as a warning.
func (l *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
