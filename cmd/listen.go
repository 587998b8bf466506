package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-management/internal/config"
	"task-management/internal/events"

	"github.com/lib/pq"
	"github.com/spf13/cobra"
)

const listenerPingInterval = 90 * time.Second

func runListen(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg, logger := env.cfg, env.logger
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("listen needs the postgres store, driver is %q", cfg.Store.Driver)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener := pq.NewListener(cfg.Store.DSN, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("listener connection event", slog.Int("event", int(ev)), slog.Any("error", err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(cfg.NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", cfg.NotifyChannel, err)
	}
	logger.Info("listening for task events", slog.String("channel", cfg.NotifyChannel))

	return consume(ctx, listener, cmd.OutOrStdout(), logger)
}

// notifier is the part of *pq.Listener consume needs.
type notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
}

func consume(ctx context.Context, l notifier, w io.Writer, logger *slog.Logger) error {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-l.NotificationChannel():
			if !ok {
				return fmt.Errorf("listener closed")
			}
			// nil after a reconnect; events sent meanwhile are lost
			if n == nil {
				logger.Warn("listener reconnected")
				continue
			}
			if err := printNotification(w, n); err != nil {
				logger.Warn("skipping notification", slog.String("channel", n.Channel), slog.Any("error", err))
			}
		case <-ticker.C:
			if err := l.Ping(); err != nil {
				logger.Warn("listener ping failed", slog.Any("error", err))
			}
		}
	}
}

func printNotification(w io.Writer, n *pq.Notification) error {
	e, err := events.Decode([]byte(n.Extra))
	if err != nil {
		return err
	}

	line := fmt.Sprintf("%s  %-9s  %s  %q", e.OccurredAt.Format(time.RFC3339), e.Kind, e.TaskID, e.Title)
	if e.Priority != "" {
		line += "  priority=" + string(e.Priority)
	}
	if e.CompletedDate != nil {
		line += "  completed=" + e.CompletedDate.Format(time.RFC3339)
	}
	_, err = fmt.Fprintln(w, line)
	return err
}
