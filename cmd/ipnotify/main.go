package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipnotify/internal/config"
	"ipnotify/internal/logger"
	"ipnotify/internal/metrics"
	"ipnotify/internal/monitor"
	"ipnotify/internal/notify"
	"ipnotify/internal/resolver"
	"ipnotify/internal/server"
	"ipnotify/internal/state"
	"ipnotify/internal/version"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	// Parse command line flags
	fs := flag.NewFlagSet("ipnotify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	once := fs.Bool("once", false, "Run a single check cycle and exit")
	showVersion := fs.Bool("version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Show version if requested
	if *showVersion {
		info := version.GetInfo()
		_, _ = fmt.Fprintln(stdout, info.String())
		return 0
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Initialize logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.Targets) == 0 {
		log.Warn("DISCORD_WEBHOOKS is not set, changes will only be logged")
	}

	m := metrics.New()

	store, err := state.New(ctx, cfg.State, log.Named("state"))
	if err != nil {
		log.Error("Failed to initialize state store",
			zap.String("backend", cfg.State.Backend),
			zap.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close state store", zap.Error(err))
		}
	}()

	res, err := resolver.New(cfg.ResolverOptions(), m, log.Named("resolver"))
	if err != nil {
		log.Error("Failed to initialize resolver", zap.Error(err))
		return 1
	}

	dispatcher := notify.NewDispatcher(cfg.Notify, m, log.Named("notify"))
	poller := monitor.NewPoller(res, store, dispatcher, cfg.Targets, m, log.Named("monitor"))
	scheduler := monitor.NewScheduler(poller, cfg.Check.Duration(), log.Named("scheduler"))

	targetNames := make([]string, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targetNames = append(targetNames, t.Name())
	}
	log.Info("IP checker configured",
		zap.String("version", version.Version),
		zap.Duration("interval", cfg.Check.Duration()),
		zap.Strings("targets", targetNames),
		zap.Int("sources", len(cfg.Sources)),
		zap.String("state_backend", cfg.State.Backend),
		zap.Bool("once", *once))

	if *once {
		if fatal := scheduler.RunOnce(ctx); fatal != nil {
			log.Error("Check cycle failed fatally", zap.Error(fatal), zap.ByteString("stack", fatal.Stack))
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			poller.NotifyFatal(nctx, fatal)
			cancel()
			return 1
		}
		if last, ok := poller.Last(); ok {
			log.Info("Check cycle finished",
				zap.String("status", string(last.Status)),
				zap.String("address", last.Resolved))
		}
		return 0
	}

	var status *server.Server
	if cfg.Status.Addr != "" {
		status = server.New(cfg.Status.Addr, poller, m.Registry(), log.Named("status"))
		if err := status.Start(); err != nil {
			log.Error("Failed to start status server", zap.Error(err))
			return 1
		}
	}

	runErr := scheduler.Run(ctx)

	if status != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := status.Shutdown(sctx); err != nil {
			log.Error("Status server shutdown error", zap.Error(err))
		}
		cancel()
	}

	if runErr != nil {
		log.Error("IP checker exited with error", zap.Error(runErr))
		return 1
	}
	log.Info("Shutdown complete")
	return 0
}
