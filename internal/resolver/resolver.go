package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ipnotify/internal/metrics"
	"ipnotify/internal/retry"
	"ipnotify/internal/version"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// maxBodySize bounds how much of a source response is read
const maxBodySize = 1024

// ErrResolutionExhausted is returned when every source failed
var ErrResolutionExhausted = errors.New("all address sources failed")

// SourceError records why a single source failed
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source.Endpoint, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ExhaustedError is returned by Resolve when no source yielded an address
type ExhaustedError struct {
	Failures []*SourceError
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "no address sources configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%s (%d tried): %s", ErrResolutionExhausted, len(e.Failures), strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrResolutionExhausted
}

// Resolver determines the public address by querying sources in order
type Resolver struct {
	sources []Source
	client  *retryablehttp.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Config configures a Resolver
type Config struct {
	Sources []Source
	Timeout time.Duration
	Retry   retry.Config
}

// New creates a resolver. The source list is copied.
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = *retry.DefaultRetryConfig()
	}

	client, err := retry.NewClient(&cfg.Retry, cfg.Timeout, logger.Named("http"))
	if err != nil {
		return nil, err
	}

	return &Resolver{
		sources: append([]Source(nil), cfg.Sources...),
		client:  client,
		logger:  logger,
		metrics: m,
	}, nil
}

// Sources returns a copy of the configured sources
func (r *Resolver) Sources() []Source {
	return append([]Source(nil), r.sources...)
}

// Resolve returns the address reported by the first source that answers
// with a parseable body. Failed sources are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveResolve(time.Since(start)) }()

	exhausted := &ExhaustedError{}
	for i, src := range r.sources {
		addr, err := r.query(ctx, src)
		if err == nil {
			r.logger.Debug("Resolved public address",
				zap.String("source", src.Endpoint),
				zap.String("address", addr))
			return addr, nil
		}

		// Cancellation is not a source failure
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		r.metrics.RecordSourceFailure(src.Endpoint)
		r.logger.Warn("Address source failed",
			zap.String("source", src.Endpoint),
			zap.String("format", string(src.Format)),
			zap.Int("position", i+1),
			zap.Int("remaining", len(r.sources)-i-1),
			zap.Error(err))
		exhausted.Failures = append(exhausted.Failures, &SourceError{Source: src, Err: err})
	}

	return "", exhausted
}

// query performs one source lookup, retrying connection failures only
func (r *Resolver) query(ctx context.Context, src Source) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, src.Endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Cache-Control", "no-cache")
	if src.Format == FormatJSON {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/plain")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			r.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return src.Parse(body)
}
