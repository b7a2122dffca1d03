package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"patchbay/internal/config"
	"patchbay/internal/logging"
	"patchbay/internal/repository"
	"patchbay/internal/service"
	"patchbay/internal/watcher"
)

// runDaemon reconciles persisted connections and then follows the registry
// until interrupted. Only startup and persistence failures are returned.
func (a *app) runDaemon(cmd *cobra.Command, args []string) (err error) {
	cfg, cfgPath, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting patchbay", zap.String("version", a.version))
	if cfgPath != "" {
		logger.Info("Config file loaded", zap.String("path", cfgPath))
	} else {
		logger.Info("No config file found, using defaults", zap.String("default", config.DefaultConfigPath()))
	}
	logger.Debug("Effective configuration", zap.String("summary", cfg.Summary()))

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	logger.Info("Connection store opened",
		zap.String("backend", cfg.Store.Backend),
		zap.String("path", cfg.Store.Path))

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, reg.Close()) }()
	if cfg.Registry.Topology == "" {
		logger.Warn("No topology given, starting with an empty in-memory registry")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := service.NewEventBus()
	tally := followActivity(bus, logger.Named("activity"))

	engine := service.NewEngine(reg, store, logger.Named("engine"), service.EngineOptions{All: cfg.All, Bus: bus})
	if err := engine.Start(ctx); err != nil {
		tally()
		return fmt.Errorf("startup reconcile: %w", err)
	}

	loop := service.NewLoop(engine, reg, cfg.PollInterval.Duration(), logger.Named("loop"))
	if cfg.WatchEnabled() {
		if w := watchStore(ctx, cfg, store, loop, logger); w != nil {
			defer func() {
				stop()
				<-w.Done()
			}()
		}
	}

	runErr := loop.Run(ctx)
	activity := tally()
	if runErr != nil {
		logger.Error("Stopping on unrecoverable error", zap.Error(runErr))
		return runErr
	}
	logger.Info("Shutting down",
		zap.Int("connections", len(engine.Connections())),
		zap.Int("learned", activity.Learned),
		zap.Int("forgotten", activity.Forgotten),
		zap.Int("linked", activity.Linked),
		zap.Int("reloads", activity.Reloads))
	return nil
}

// followActivity counts bus events until the returned func is called, which
// detaches from the bus and reports the totals.
func followActivity(bus *service.EventBus, logger *zap.Logger) func() service.Activity {
	events := make(chan service.Event, 64)
	bus.Subscribe(events)

	var activity service.Activity
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			activity.Record(ev)
			logger.Debug("Engine event",
				zap.String("type", string(ev.Type)),
				zap.Stringer("connection", ev.Connection))
		}
	}()

	return func() service.Activity {
		bus.Unsubscribe(events)
		close(events)
		<-done
		return activity
	}
}

// watchStore hooks hand edits of a file-backed store into the loop. A watcher
// that cannot start only costs the reload feature, and yields nil.
func watchStore(ctx context.Context, cfg *config.Config, store repository.Store, loop *service.Loop, logger *zap.Logger) *watcher.Watcher {
	fb, ok := store.(repository.FileBacked)
	if !ok {
		return nil
	}
	w := watcher.New(fb.Path(), logger.Named("watcher")).WithDebounce(cfg.WatchDebounce.Duration())
	changes, err := w.Start(ctx)
	if err != nil {
		logger.Warn("Cannot watch connection file", zap.String("path", fb.Path()), zap.Error(err))
		return nil
	}
	loop.WatchStore(changes)
	return w
}
