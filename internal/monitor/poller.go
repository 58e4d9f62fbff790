package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ipnotify/internal/metrics"
	"ipnotify/internal/notify"
	"ipnotify/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// persistTimeout bounds the state write that follows a change notice
const persistTimeout = 10 * time.Second

// AddressResolver determines the current public address
type AddressResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StateStore persists the last known address
type StateStore interface {
	Read(ctx context.Context) (string, bool, error)
	Write(ctx context.Context, addr string) error
}

// Notifier delivers change and error notices
type Notifier interface {
	NotifyChange(ctx context.Context, address string, targets []notify.Target) []notify.Delivery
	NotifyError(ctx context.Context, message string, targets []notify.Target) []notify.Delivery
}

// Poller runs check cycles: resolve, compare with the stored address,
// notify on change, persist.
type Poller struct {
	resolver AddressResolver
	store    StateStore
	notifier Notifier
	targets  []notify.Target
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu   sync.RWMutex
	last *types.CheckResult

	now   func() time.Time
	newID func() string
}

// NewPoller creates a poller. The target list is copied and not modified afterwards.
func NewPoller(resolver AddressResolver, store StateStore, notifier Notifier, targets []notify.Target, m *metrics.Metrics, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		resolver: resolver,
		store:    store,
		notifier: notifier,
		targets:  append([]notify.Target(nil), targets...),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Check runs one check cycle and returns its result
func (p *Poller) Check(ctx context.Context) types.CheckResult {
	res := types.CheckResult{
		CycleID:   p.newID(),
		StartedAt: p.now(),
	}
	log := p.logger.With(zap.String("cycle_id", res.CycleID))
	targets := append([]notify.Target(nil), p.targets...)

	addr, err := p.resolver.Resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("Check cycle abandoned", zap.Error(err))
			return p.finish(res, types.CheckSkipped, err)
		}
		log.Error("Failed to resolve public IP address", zap.Error(err))
		p.notifyError(ctx, log, fmt.Sprintf("Error getting public IP: %v", err), targets)
		return p.finish(res, types.CheckFailed, err)
	}
	res.Resolved = addr

	previous, ok, err := p.store.Read(ctx)
	if err != nil {
		log.Error("Failed to read last known IP address", zap.Error(err))
		p.notifyError(ctx, log, fmt.Sprintf("Error reading last known IP: %v", err), targets)
		return p.finish(res, types.CheckFailed, err)
	}
	res.Previous = previous
	res.Changed = !ok || addr != previous

	if !res.Changed {
		log.Info("IP address has not changed", zap.String("address", addr))
		return p.finish(res, types.CheckUnchanged, nil)
	}

	log.Info("IP address changed",
		zap.String("previous", previous),
		zap.String("current", addr),
		zap.Bool("first_run", !ok))

	if len(targets) == 0 {
		log.Warn("No webhooks configured, change not notified or persisted")
		return p.finish(res, types.CheckSkipped, types.ErrNoTargets)
	}

	var interrupted []string
	for _, d := range p.notifier.NotifyChange(ctx, addr, targets) {
		if d.OK() {
			res.Notified++
		} else if ctx.Err() != nil && errors.Is(d.Err, ctx.Err()) {
			interrupted = append(interrupted, d.Target.Name())
		}
	}
	if len(interrupted) > 0 {
		log.Warn("Shutdown interrupted change notice, these targets will not see this change",
			zap.String("address", addr),
			zap.Strings("targets", interrupted))
	}

	// Persist even when some or all deliveries failed, and even if the
	// cycle was cancelled after notices went out.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := p.store.Write(wctx, addr); err != nil {
		p.metrics.RecordStateWriteFailure()
		log.Error("Failed to persist IP address, the change may be notified again",
			zap.String("address", addr),
			zap.Error(err))
		return p.finish(res, types.CheckChanged, err)
	}
	res.Persisted = true
	p.metrics.RecordChange(res.StartedAt)

	log.Info("IP change handled",
		zap.String("address", addr),
		zap.Int("notified", res.Notified),
		zap.Int("targets", len(targets)))
	return p.finish(res, types.CheckChanged, nil)
}

// NotifyFatal sends a best-effort error notice for an error that stops the daemon
func (p *Poller) NotifyFatal(ctx context.Context, err error) {
	p.notifyError(ctx, p.logger, fmt.Sprintf("IP checker stopped: %v", err), p.targets)
}

// Last returns the result of the most recent cycle
func (p *Poller) Last() (types.CheckResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return types.CheckResult{}, false
	}
	return *p.last, true
}

// Targets returns a copy of the configured targets
func (p *Poller) Targets() []notify.Target {
	return append([]notify.Target(nil), p.targets...)
}

func (p *Poller) notifyError(ctx context.Context, log *zap.Logger, message string, targets []notify.Target) {
	if len(targets) == 0 {
		log.Warn("No webhooks configured, error not notified")
		return
	}
	p.notifier.NotifyError(ctx, message, targets)
}

func (p *Poller) finish(res types.CheckResult, status types.CheckStatus, err error) types.CheckResult {
	res.Status = status
	res.Duration = p.now().Sub(res.StartedAt)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
	}
	p.metrics.RecordCheck(string(status), res.StartedAt.Add(res.Duration))

	p.mu.Lock()
	p.last = &res
	p.mu.Unlock()
	return res
}
