package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"ipnotify/internal/types"

	"go.uber.org/zap"
)

// fatalNoticeTimeout bounds the error notice sent before the process exits
const fatalNoticeTimeout = 30 * time.Second

// FatalError is returned by Scheduler.Run when a cycle panics
type FatalError struct {
	Cause any
	Stack []byte
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("scheduler fatal error: %v", e.Cause)
}

func (e *FatalError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// Checker runs one check cycle
type Checker interface {
	Check(ctx context.Context) types.CheckResult
	NotifyFatal(ctx context.Context, err error)
}

// Scheduler runs check cycles one at a time: once immediately, then every
// interval measured from the start of the previous cycle. A cycle that runs
// past its interval delays the next one instead of overlapping it.
type Scheduler struct {
	checker  Checker
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(checker Checker, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		checker:  checker,
		interval: interval,
		logger:   logger,
	}
}

// Run loops until ctx is cancelled (returns nil) or a cycle panics
// (returns *FatalError after a best-effort error notice).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting IP checker", zap.Duration("interval", s.interval))

	for {
		start := time.Now()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Scheduler stopped by fatal error",
				zap.Error(err),
				zap.ByteString("stack", err.Stack))

			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fatalNoticeTimeout)
			s.safeNotifyFatal(nctx, err)
			cancel()
			return err
		}

		if ctx.Err() != nil {
			s.logger.Info("IP checker stopped")
			return nil
		}

		wait := time.Until(start.Add(s.interval))
		if wait < 0 {
			s.logger.Warn("Check cycle overran interval",
				zap.Duration("interval", s.interval),
				zap.Duration("overrun", -wait))
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("IP checker stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce runs a single cycle, converting a panic into a *FatalError
func (s *Scheduler) RunOnce(ctx context.Context) (fatal *FatalError) {
	defer func() {
		if r := recover(); r != nil {
			fatal = &FatalError{Cause: r, Stack: debug.Stack()}
		}
	}()

	res := s.checker.Check(ctx)
	s.logger.Debug("Check cycle finished",
		zap.String("cycle_id", res.CycleID),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", res.Duration))
	return nil
}

// safeNotifyFatal sends the fatal notice without letting a second panic escape
func (s *Scheduler) safeNotifyFatal(ctx context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Failed to send fatal error notice", zap.Any("panic", r))
		}
	}()
	s.checker.NotifyFatal(ctx, err)
}
