package memory

import (
	"context"
	"errors"
	"sync"

	"task-management/internal/domain"
	"task-management/internal/store"

	"github.com/google/uuid"
)

var (
	ErrNotInitialized = errors.New("task store not initialized")
	ErrDuplicateID    = errors.New("task id already exists")
)

// TaskStore keeps snapshots, so callers never share a *domain.Task with the store.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]domain.Snapshot
}

func New() *TaskStore {
	return &TaskStore{
		tasks: make(map[uuid.UUID]domain.Snapshot),
	}
}

func (ts *TaskStore) Add(_ context.Context, task *domain.Task) (*domain.Task, error) {
	snap := task.Snapshot()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.tasks == nil {
		return nil, ErrNotInitialized
	}
	if _, ok := ts.tasks[snap.ID]; ok {
		return nil, ErrDuplicateID
	}
	ts.tasks[snap.ID] = snap

	return task, nil
}

func (ts *TaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	ts.mu.RLock()
	snap, ok := ts.tasks[id]
	ts.mu.RUnlock()

	if !ok {
		return nil, store.ErrNotFound
	}
	return domain.Restore(snap), nil
}

// Update is last-writer-wins.
func (ts *TaskStore) Update(_ context.Context, task *domain.Task) (*domain.Task, error) {
	snap := task.Snapshot()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.tasks[snap.ID]; !ok {
		return nil, store.ErrNotFound
	}
	ts.tasks[snap.ID] = snap

	return task, nil
}

func (ts *TaskStore) Delete(_ context.Context, id uuid.UUID) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(ts.tasks, id)

	return nil
}

func (ts *TaskStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	ts.mu.RLock()
	_, ok := ts.tasks[id]
	ts.mu.RUnlock()

	return ok, nil
}

func (ts *TaskStore) ListAll(_ context.Context) ([]*domain.Task, error) {
	return ts.list(func(domain.Snapshot) bool { return true })
}

func (ts *TaskStore) ListByStatus(_ context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	return ts.list(func(s domain.Snapshot) bool { return s.Status == status })
}

func (ts *TaskStore) ListByPriority(_ context.Context, priority domain.TaskPriority) ([]*domain.Task, error) {
	return ts.list(func(s domain.Snapshot) bool { return s.Priority == priority })
}

func (ts *TaskStore) list(keep func(domain.Snapshot) bool) ([]*domain.Task, error) {
	ts.mu.RLock()
	if ts.tasks == nil {
		ts.mu.RUnlock()
		return nil, ErrNotInitialized
	}

	snaps := make([]domain.Snapshot, 0, len(ts.tasks))
	for _, s := range ts.tasks {
		if keep(s) {
			snaps = append(snaps, s)
		}
	}
	ts.mu.RUnlock()

	// map iteration is random
	store.SortSnapshots(snaps)

	tasks := make([]*domain.Task, 0, len(snaps))
	for _, s := range snaps {
		tasks = append(tasks, domain.Restore(s))
	}

	return tasks, nil
}
