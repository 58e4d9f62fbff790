package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ipnotify/internal/metrics"
	"ipnotify/internal/version"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

// ErrUnexpectedStatus is returned for any webhook response other than 204
var ErrUnexpectedStatus = errors.New("unexpected webhook status")

// Target is one webhook endpoint
type Target struct {
	URL   string `json:"-" validate:"required,http_url"`
	Label string `json:"label"`
}

// Name returns the label used in logs
func (t Target) Name() string {
	return t.Label
}

// ParseTargets parses webhook definitions. Each entry is a URL, optionally
// prefixed with "label=". Unlabelled targets are named webhook-<n>.
func ParseTargets(defs []string) []Target {
	var targets []Target
	for _, def := range defs {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		t := Target{URL: def}
		if label, rest, ok := strings.Cut(def, "="); ok && label != "" && !strings.ContainsAny(label, ":/?&") {
			t.Label = strings.TrimSpace(label)
			t.URL = strings.TrimSpace(rest)
		}
		if t.Label == "" {
			t.Label = "webhook-" + strconv.Itoa(len(targets)+1)
		}
		targets = append(targets, t)
	}
	return targets
}

// Delivery is the outcome of one POST to one target
type Delivery struct {
	Target     Target
	StatusCode int
	Err        error
}

// OK reports whether the target accepted the notice
func (d Delivery) OK() bool {
	return d.Err == nil
}

// Config configures a Dispatcher
type Config struct {
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Username  string        `mapstructure:"username"`
	AvatarURL string        `mapstructure:"avatar_url" validate:"omitempty,http_url"`
}

// Dispatcher sends change and error notices to webhook targets.
// Delivery is best effort: one attempt per target, failures are isolated.
type Dispatcher struct {
	config  Config
	logger  *zap.Logger
	client  *http.Client
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Dispatcher{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cleanhttp.DefaultPooledTransport(),
		},
		metrics: m,
		now:     time.Now,
	}
}

// NotifyChange sends a change notice for address to every target
func (d *Dispatcher) NotifyChange(ctx context.Context, address string, targets []Target) []Delivery {
	return d.dispatch(ctx, KindChange, changeMessage(address, d.now()), targets)
}

// NotifyError sends an error notice carrying message to every target
func (d *Dispatcher) NotifyError(ctx context.Context, message string, targets []Target) []Delivery {
	return d.dispatch(ctx, KindError, errorMessage(message, d.now()), targets)
}

// dispatch posts msg to each target in order
func (d *Dispatcher) dispatch(ctx context.Context, kind Kind, msg DiscordMessage, targets []Target) []Delivery {
	msg.Username = d.config.Username
	msg.AvatarURL = d.config.AvatarURL

	payload, err := json.Marshal(msg)
	if err != nil {
		err = fmt.Errorf("failed to marshal message: %w", err)
	}

	deliveries := make([]Delivery, 0, len(targets))
	for _, t := range targets {
		dl := Delivery{Target: t, Err: err}
		if err == nil {
			dl.StatusCode, dl.Err = d.send(ctx, t, payload)
		}
		d.metrics.RecordDelivery(string(kind), dl.OK())

		if dl.OK() {
			d.logger.Info("Discord message sent",
				zap.String("kind", string(kind)),
				zap.String("target", t.Name()))
		} else {
			d.logger.Error("Discord message failed",
				zap.String("kind", string(kind)),
				zap.String("target", t.Name()),
				zap.Int("status", dl.StatusCode),
				zap.Error(dl.Err))
		}
		deliveries = append(deliveries, dl)
	}
	return deliveries
}

// send posts payload to one target
func (d *Dispatcher) send(ctx context.Context, t Target, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", stripURL(err))
	}

	defer func(Body io.ReadCloser) {
		_, _ = io.Copy(io.Discard, io.LimitReader(Body, 4096))
		if err := Body.Close(); err != nil {
			d.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// stripURL drops the URL from a *url.Error. Webhook URLs carry the token,
// and errors end up in logs and in /healthz.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
