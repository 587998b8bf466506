package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"task-management/internal/domain"
	"task-management/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
)

var tracer = otel.Tracer("task-management/internal/service")

type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Add(ctx context.Context, t *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) (*domain.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context) ([]*domain.Task, error)
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)
	ListByPriority(ctx context.Context, priority domain.TaskPriority) ([]*domain.Task, error)
}

// Publisher hands the drained events of one task to the subscribers.
type Publisher interface {
	Publish(ctx context.Context, taskID uuid.UUID, evs []domain.Event) error
}

type CreateInput struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	DueDate     time.Time
}

type UpdateInput struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	DueDate     time.Time
}

// Filter selects tasks for ListTasks. Zero values match everything.
type Filter struct {
	Status   domain.TaskStatus
	Priority domain.TaskPriority
}

type Stats struct {
	Total    int
	ByStatus map[domain.TaskStatus]int
	Overdue  int
}

type TaskService struct {
	store     TaskStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func New(store TaskStore, publisher Publisher, logger *slog.Logger) (*TaskService, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if publisher == nil {
		return nil, ErrPublisherNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *TaskService) CreateTask(ctx context.Context, in CreateInput) (_ *domain.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.CreateTask")
	defer func() { endSpan(span, err) }()

	if err := validateRequest(in.Title, in.Description); err != nil {
		return nil, err
	}

	task, err := domain.New(in.Title, in.Description, priorityOrDefault(in.Priority), in.DueDate)
	if err != nil {
		return nil, classify(err)
	}

	created, err := s.store.Add(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	span.SetAttributes(attribute.String("task.id", created.ID().String()))

	s.publish(ctx, task)

	return created, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (_ *domain.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.GetTask", trace.WithAttributes(attribute.String("task.id", id.String())))
	defer func() { endSpan(span, err) }()

	return s.load(ctx, id)
}

func (s *TaskService) ListTasks(ctx context.Context, f Filter) (_ []*domain.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.ListTasks")
	defer func() { endSpan(span, err) }()

	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, f.Priority)
	}

	var tasks []*domain.Task
	switch {
	case f.Status != "":
		tasks, err = s.store.ListByStatus(ctx, f.Status)
	case f.Priority != "":
		tasks, err = s.store.ListByPriority(ctx, f.Priority)
	default:
		tasks, err = s.store.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	// a status query narrowed by priority is filtered here
	if f.Status != "" && f.Priority != "" {
		kept := tasks[:0]
		for _, t := range tasks {
			if t.Priority() == f.Priority {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}

	span.SetAttributes(attribute.Int("tasks.count", len(tasks)))
	return tasks, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, in UpdateInput) (_ *domain.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.UpdateTask", trace.WithAttributes(attribute.String("task.id", id.String())))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(in.Title, in.Description); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(t *domain.Task) error {
		return t.UpdateDetails(in.Title, in.Description, priorityOrDefault(in.Priority), in.DueDate)
	})
}

func (s *TaskService) StartTask(ctx context.Context, id uuid.UUID) (_ *domain.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.StartTask", trace.WithAttributes(attribute.String("task.id", id.String())))
	defer func() { endSpan(span, err) }()

	return s.mutate(ctx, id, (*domain.Task).Start)
}

func (s *TaskService) CompleteTask(ctx context.Context, id uuid.UUID) (_ *domain.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.CompleteTask", trace.WithAttributes(attribute.String("task.id", id.String())))
	defer func() { endSpan(span, err) }()

	return s.mutate(ctx, id, (*domain.Task).Complete)
}

func (s *TaskService) CancelTask(ctx context.Context, id uuid.UUID) (_ *domain.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.CancelTask", trace.WithAttributes(attribute.String("task.id", id.String())))
	defer func() { endSpan(span, err) }()

	return s.mutate(ctx, id, (*domain.Task).Cancel)
}

// DeleteTask removes the task. Deletion records no event.
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "TaskService.DeleteTask", trace.WithAttributes(attribute.String("task.id", id.String())))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return ErrInvalidID
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// Stats counts tasks per status. Every status is present in the map.
func (s *TaskService) Stats(ctx context.Context) (_ Stats, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.Stats")
	defer func() { endSpan(span, err) }()

	tasks, err := s.store.ListAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list tasks: %w", err)
	}

	st := Stats{Total: len(tasks), ByStatus: make(map[domain.TaskStatus]int, len(domain.Statuses()))}
	for _, status := range domain.Statuses() {
		st.ByStatus[status] = 0
	}

	at := s.now()
	for _, t := range tasks {
		st.ByStatus[t.Status()]++
		if t.Overdue(at) {
			st.Overdue++
		}
	}
	return st, nil
}

func (s *TaskService) load(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidID
	}

	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// mutate loads the task, applies op, persists the result and publishes the
// events op recorded. Nothing is written when op fails.
func (s *TaskService) mutate(ctx context.Context, id uuid.UUID, op func(*domain.Task) error) (*domain.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := op(task); err != nil {
		return nil, classify(err)
	}

	updated, err := s.store.Update(ctx, task)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}

	s.publish(ctx, task)

	return updated, nil
}

// publish runs after the change is stored, so a delivery failure is logged
// and does not fail the operation.
func (s *TaskService) publish(ctx context.Context, task *domain.Task) {
	evs := task.DrainEvents()
	if len(evs) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, task.ID(), evs); err != nil {
		s.logger.ErrorContext(ctx, "publish task events",
			slog.String("task_id", task.ID().String()),
			slog.Int("events", len(evs)),
			slog.Any("error", err))
	}
}

func validateRequest(title, description string) error {
	if utf8.RuneCountInString(title) > maxTitleLen {
		return fmt.Errorf("%w: title cannot exceed %d characters", ErrInvalidInput, maxTitleLen)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return fmt.Errorf("%w: description cannot exceed %d characters", ErrInvalidInput, maxDescriptionLen)
	}
	return nil
}

func priorityOrDefault(p domain.TaskPriority) domain.TaskPriority {
	if p == "" {
		return domain.PriorityMedium
	}
	return p
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	default:
		return err
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
