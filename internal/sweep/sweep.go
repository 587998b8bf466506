package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"task-management/internal/domain"

	rcron "github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "task-management/internal/sweep"

type TaskLister interface {
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)
}

// Service periodically reports open tasks whose due date has passed.
// It only reads; tasks are never changed.
type Service struct {
	store    TaskLister
	logger   *slog.Logger
	schedule string
	now      func() time.Time
	overdue  metric.Int64Gauge

	mu     sync.Mutex
	cron   *rcron.Cron
	cancel context.CancelFunc
}

func New(store TaskLister, logger *slog.Logger, schedule string) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("sweep: nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := rcron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}

	gauge, err := otel.Meter(instrumentationName).Int64Gauge("tasks.overdue",
		metric.WithDescription("Open tasks past their due date at the last sweep"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, fmt.Errorf("create overdue gauge: %w", err)
	}

	return &Service{
		store:    store,
		logger:   logger,
		schedule: schedule,
		now:      func() time.Time { return time.Now().UTC() },
		overdue:  gauge,
	}, nil
}

// Start registers the sweep and returns immediately. Cancelling ctx stops it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweep already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := rcron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Run(runCtx); err != nil {
			s.logger.ErrorContext(runCtx, "overdue sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("register sweep: %w", err)
	}

	s.cron, s.cancel = c, cancel
	c.Start()
	s.logger.InfoContext(ctx, "overdue sweep started", slog.String("schedule", s.schedule))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running sweep to finish. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()

	select {
	case <-c.Stop().Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("overdue sweep stop timed out")
	}
}

// Run performs one sweep and returns the number of overdue tasks.
func (s *Service) Run(ctx context.Context) (int, error) {
	at := s.now()
	count := 0

	for _, status := range []domain.TaskStatus{domain.StatusPending, domain.StatusInProgress} {
		tasks, err := s.store.ListByStatus(ctx, status)
		if err != nil {
			return 0, fmt.Errorf("list %s tasks: %w", status, err)
		}
		for _, t := range tasks {
			if !t.Overdue(at) {
				continue
			}
			count++
			s.logger.WarnContext(ctx, "task overdue",
				slog.String("task_id", t.ID().String()),
				slog.String("title", t.Title()),
				slog.String("status", t.Status().String()),
				slog.Time("due_date", t.DueDate()),
				slog.Duration("late_by", at.Sub(t.DueDate()).Round(time.Second)))
		}
	}

	s.overdue.Record(ctx, int64(count))
	return count, nil
}
