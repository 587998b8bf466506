package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-management/internal/config"
	"task-management/internal/events"
	router "task-management/internal/http"
	"task-management/internal/http/handlers"
	"task-management/internal/logging"
	"task-management/internal/service"
	"task-management/internal/sweep"
	"task-management/internal/workerpool"

	"github.com/spf13/cobra"
)

const metricExportInterval = 30 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(os.Stderr)
	if err != nil {
		return err
	}
	cfg, logger := env.cfg, env.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry {
		otelShutdown, err := logging.SetupOTel(ctx, os.Stdout, metricExportInterval)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(flushCtx); err != nil {
				fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
			}
		}()
		logger = logging.WithOTel(logger)
	}
	slog.SetDefault(logger)

	st, err := openStore(ctx, cfg.Store, true)
	if err != nil {
		return err
	}
	defer st.Close()

	fanout, err := newFanout(cfg, st, logger)
	if err != nil {
		return err
	}

	pool := workerpool.New(cfg.PoolSize, fanout)
	pool.OnError(func(b workerpool.Batch, err error) {
		logger.Error("event delivery failed",
			slog.String("task_id", b.TaskID.String()),
			slog.Int("events", len(b.Events)),
			slog.Any("error", err))
	})
	pool.DispatchTimeout(cfg.ShutdownTimeout)
	pool.Start(cfg.Workers)

	svc, err := service.New(st.tasks, pool, logger)
	if err != nil {
		return fmt.Errorf("service initiation failed: %w", err)
	}

	var pinger handlers.Pinger
	if st.sql != nil {
		pinger = st.sql
	}
	handler := handlers.New(svc, pinger, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sw, err := sweep.New(st.tasks, logger, cfg.SweepSchedule)
	if err != nil {
		return err
	}
	if err := sw.Start(ctx); err != nil {
		return err
	}
	defer sw.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("store", cfg.Store.Driver),
			slog.Int("workers", cfg.Workers))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shut down signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	// requests are finished, so every drained batch is in the pool by now
	if err := pool.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("event pool shutdown: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("shut down gracefully")
	return nil
}

// newFanout registers the in-process subscribers. Postgres deployments also
// publish every event on the notify channel.
func newFanout(cfg config.Config, st openedStore, logger *slog.Logger) (*events.Fanout, error) {
	fanout := events.NewFanout()
	fanout.Subscribe("log", events.NewLogSubscriber(logger))

	metrics, err := events.NewMetricsSubscriber()
	if err != nil {
		return nil, err
	}
	fanout.Subscribe("metrics", metrics)

	if cfg.Store.Driver == config.DriverPostgres && st.sql != nil {
		notifier, err := events.NewPGNotifier(st.sql.DB(), cfg.NotifyChannel)
		if err != nil {
			return nil, err
		}
		fanout.Subscribe("pg_notify", notifier)
	}
	return fanout, nil
}
