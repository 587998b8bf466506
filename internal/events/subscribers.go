package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"task-management/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "task-management/internal/events"

// LogSubscriber writes one structured line per event.
type LogSubscriber struct {
	logger *slog.Logger
}

func NewLogSubscriber(logger *slog.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger}
}

func (s *LogSubscriber) Handle(ctx context.Context, e domain.Event) error {
	attrs := []any{
		slog.String("kind", string(e.Kind())),
		slog.String("task_id", e.TaskID().String()),
	}
	switch v := e.(type) {
	case domain.TaskCreated:
		attrs = append(attrs, slog.String("title", v.Title), slog.String("priority", string(v.Priority)))
	case domain.TaskUpdated:
		attrs = append(attrs, slog.String("title", v.Title), slog.String("priority", string(v.Priority)))
	case domain.TaskCompleted:
		attrs = append(attrs, slog.String("title", v.Title), slog.Time("completed_date", v.CompletedDate))
	case domain.TaskStarted:
		attrs = append(attrs, slog.String("title", v.Title))
	case domain.TaskCancelled:
		attrs = append(attrs, slog.String("title", v.Title))
	}
	s.logger.InfoContext(ctx, "task event", attrs...)
	return nil
}

// MetricsSubscriber counts events by kind.
type MetricsSubscriber struct {
	counter metric.Int64Counter
}

func NewMetricsSubscriber() (*MetricsSubscriber, error) {
	counter, err := otel.Meter(instrumentationName).Int64Counter("tasks.events",
		metric.WithDescription("Task lifecycle events delivered"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	return &MetricsSubscriber{counter: counter}, nil
}

func (s *MetricsSubscriber) Handle(ctx context.Context, e domain.Event) error {
	s.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(e.Kind()))))
	return nil
}

// Execer is the part of *sql.DB PGNotifier needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PGNotifier publishes every event as JSON on a postgres NOTIFY channel.
type PGNotifier struct {
	db      Execer
	channel string
	now     func() time.Time
}

func NewPGNotifier(db Execer, channel string) (*PGNotifier, error) {
	if db == nil {
		return nil, errors.New("pg notifier: nil db")
	}
	if channel == "" {
		return nil, errors.New("pg notifier: empty channel")
	}
	return &PGNotifier{db: db, channel: channel, now: time.Now}, nil
}

func (n *PGNotifier) Handle(ctx context.Context, e domain.Event) error {
	payload, err := Encode(e, n.now())
	if err != nil {
		return err
	}
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", n.channel, err)
	}
	return nil
}
