package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Task is the tracked work item. It is not safe for concurrent mutation;
// every request works on its own instance loaded from a store.
type Task struct {
	id            uuid.UUID
	title         string
	description   string
	status        TaskStatus
	priority      TaskPriority
	dueDate       time.Time
	createdDate   time.Time
	completedDate *time.Time

	events []Event
}

// Snapshot is the persisted form of a Task.
type Snapshot struct {
	ID            uuid.UUID
	Title         string
	Description   string
	Status        TaskStatus
	Priority      TaskPriority
	DueDate       time.Time
	CreatedDate   time.Time
	CompletedDate *time.Time
}

func New(title, description string, priority TaskPriority, dueDate time.Time) (*Task, error) {
	if err := validateDetails(title, priority, dueDate); err != nil {
		return nil, err
	}

	t := &Task{
		id:          uuid.New(),
		title:       title,
		description: description,
		status:      StatusPending,
		priority:    priority,
		dueDate:     dueDate.UTC(),
		createdDate: now(),
	}
	t.record(TaskCreated{ID: t.id, Title: t.title, Priority: t.priority})

	return t, nil
}

// Restore rebuilds a task from storage. No event is recorded.
func Restore(s Snapshot) *Task {
	t := &Task{
		id:          s.ID,
		title:       s.Title,
		description: s.Description,
		status:      s.Status,
		priority:    s.Priority,
		dueDate:     s.DueDate.UTC(),
		createdDate: s.CreatedDate.UTC(),
	}
	if s.CompletedDate != nil {
		c := s.CompletedDate.UTC()
		t.completedDate = &c
	}
	return t
}

func (t *Task) Snapshot() Snapshot {
	s := Snapshot{
		ID:          t.id,
		Title:       t.title,
		Description: t.description,
		Status:      t.status,
		Priority:    t.priority,
		DueDate:     t.dueDate,
		CreatedDate: t.createdDate,
	}
	if t.completedDate != nil {
		c := *t.completedDate
		s.CompletedDate = &c
	}
	return s
}

// UpdateDetails does not look at the status: terminal tasks stay editable.
func (t *Task) UpdateDetails(title, description string, priority TaskPriority, dueDate time.Time) error {
	if err := validateDetails(title, priority, dueDate); err != nil {
		return err
	}

	t.title = title
	t.description = description
	t.priority = priority
	t.dueDate = dueDate.UTC()
	t.record(TaskUpdated{ID: t.id, Title: t.title, Priority: t.priority})

	return nil
}

func (t *Task) Start() error {
	if err := t.transition(StatusInProgress); err != nil {
		return err
	}
	t.record(TaskStarted{ID: t.id, Title: t.title})
	return nil
}

func (t *Task) Complete() error {
	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	completed := now()
	t.completedDate = &completed
	t.record(TaskCompleted{ID: t.id, Title: t.title, CompletedDate: completed})
	return nil
}

// Cancel is allowed on an already cancelled task and records another event.
func (t *Task) Cancel() error {
	if err := t.transition(StatusCancelled); err != nil {
		return err
	}
	t.record(TaskCancelled{ID: t.id, Title: t.title})
	return nil
}

// DrainEvents hands over the recorded events in call order and empties the buffer.
func (t *Task) DrainEvents() []Event {
	out := t.events
	t.events = nil
	return out
}

// PendingEvents reports how many events wait to be drained.
func (t *Task) PendingEvents() int { return len(t.events) }

// Overdue is true for a task that is not terminal and whose due date has passed.
func (t *Task) Overdue(at time.Time) bool {
	return !t.status.Terminal() && t.dueDate.Before(at)
}

func (t *Task) ID() uuid.UUID          { return t.id }
func (t *Task) Title() string          { return t.title }
func (t *Task) Description() string    { return t.description }
func (t *Task) Status() TaskStatus     { return t.status }
func (t *Task) Priority() TaskPriority { return t.priority }
func (t *Task) DueDate() time.Time     { return t.dueDate }
func (t *Task) CreatedDate() time.Time { return t.createdDate }

// CompletedDate returns false until the task is completed.
func (t *Task) CompletedDate() (time.Time, bool) {
	if t.completedDate == nil {
		return time.Time{}, false
	}
	return *t.completedDate, true
}

func (t *Task) transition(to TaskStatus) error {
	if !CanTransition(t.status, to) {
		return &InvalidTransitionError{From: t.status, To: to}
	}
	t.status = to
	return nil
}

func (t *Task) record(e Event) {
	t.events = append(t.events, e)
}

func validateDetails(title string, priority TaskPriority, dueDate time.Time) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be one of Low, Medium, High, Critical"}
	}
	if !dueDate.After(now()) {
		return &ValidationError{Field: "dueDate", Reason: "must be in the future"}
	}
	return nil
}
