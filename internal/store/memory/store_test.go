package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"task-management/internal/domain"
	"task-management/internal/store"

	"github.com/google/uuid"
)

var _ store.TaskStore = (*TaskStore)(nil)

func newTask(t *testing.T, title string, priority domain.TaskPriority) *domain.Task {
	t.Helper()

	task, err := domain.New(title, "d", priority, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("domain.New() err = %v, want nil", err)
	}
	return task
}

func TestTaskStore_AddAndGet(t *testing.T) {
	ctx := context.Background()
	ts := New()

	in := newTask(t, "t1", domain.PriorityHigh)

	added, err := ts.Add(ctx, in)
	if err != nil {
		t.Fatalf("Add() err = %v, want nil", err)
	}
	if added.ID() != in.ID() {
		t.Fatalf("Add() id = %s, want %s", added.ID(), in.ID())
	}

	got, err := ts.GetByID(ctx, in.ID())
	if err != nil {
		t.Fatalf("GetByID() err = %v, want nil", err)
	}
	if got.Snapshot() != in.Snapshot() {
		t.Fatalf("GetByID() returned unexpected task: %+v", got.Snapshot())
	}
	if got.PendingEvents() != 0 {
		t.Fatalf("GetByID() pending events = %d, want 0", got.PendingEvents())
	}
}

func TestTaskStore_Add_Duplicate(t *testing.T) {
	ctx := context.Background()
	ts := New()

	task := newTask(t, "t", domain.PriorityLow)
	if _, err := ts.Add(ctx, task); err != nil {
		t.Fatalf("Add() err = %v, want nil", err)
	}
	if _, err := ts.Add(ctx, task); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("Add() err = %v, want %v", err, ErrDuplicateID)
	}
}

func TestTaskStore_Get_NotFound(t *testing.T) {
	ts := New()

	_, err := ts.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetByID() err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestTaskStore_ReturnedTaskIsDetached(t *testing.T) {
	ctx := context.Background()
	ts := New()

	task := newTask(t, "t", domain.PriorityLow)
	_, _ = ts.Add(ctx, task)

	got, _ := ts.GetByID(ctx, task.ID())
	if err := got.Start(); err != nil {
		t.Fatalf("Start() err = %v, want nil", err)
	}

	again, _ := ts.GetByID(ctx, task.ID())
	if again.Status() != domain.StatusPending {
		t.Fatalf("stored status = %s, want %s", again.Status(), domain.StatusPending)
	}
}

func TestTaskStore_Update(t *testing.T) {
	ctx := context.Background()
	ts := New()

	task := newTask(t, "t", domain.PriorityLow)
	_, _ = ts.Add(ctx, task)

	if err := task.Start(); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	if _, err := ts.Update(ctx, task); err != nil {
		t.Fatalf("Update() err = %v, want nil", err)
	}

	got, err := ts.GetByID(ctx, task.ID())
	if err != nil {
		t.Fatalf("GetByID() err = %v, want nil", err)
	}
	if got.Status() != domain.StatusInProgress {
		t.Fatalf("GetByID() status = %s, want %s", got.Status(), domain.StatusInProgress)
	}
}

func TestTaskStore_Update_NotFound(t *testing.T) {
	ts := New()

	_, err := ts.Update(context.Background(), newTask(t, "t", domain.PriorityLow))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Update() err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestTaskStore_Delete(t *testing.T) {
	ctx := context.Background()
	ts := New()

	task := newTask(t, "t", domain.PriorityLow)
	_, _ = ts.Add(ctx, task)

	if err := ts.Delete(ctx, task.ID()); err != nil {
		t.Fatalf("Delete() err = %v, want nil", err)
	}
	if ok, _ := ts.Exists(ctx, task.ID()); ok {
		t.Fatalf("Exists() = true after Delete, want false")
	}
	if err := ts.Delete(ctx, task.ID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete() err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestTaskStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	ts := New()

	low := newTask(t, "low", domain.PriorityLow)
	high := newTask(t, "high", domain.PriorityHigh)
	started := newTask(t, "started", domain.PriorityHigh)
	_ = started.Start()

	for _, task := range []*domain.Task{low, high, started} {
		if _, err := ts.Add(ctx, task); err != nil {
			t.Fatalf("Add() err = %v", err)
		}
	}

	all, err := ts.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() err = %v, want nil", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll() len = %d, want 3", len(all))
	}

	pending, _ := ts.ListByStatus(ctx, domain.StatusPending)
	if len(pending) != 2 || !containsID(pending, low.ID()) || !containsID(pending, high.ID()) {
		t.Fatalf("ListByStatus(Pending) = %d tasks, want low and high", len(pending))
	}

	highs, _ := ts.ListByPriority(ctx, domain.PriorityHigh)
	if len(highs) != 2 || !containsID(highs, high.ID()) || !containsID(highs, started.ID()) {
		t.Fatalf("ListByPriority(High) = %d tasks, want high and started", len(highs))
	}

	none, _ := ts.ListByPriority(ctx, domain.PriorityCritical)
	if len(none) != 0 {
		t.Fatalf("ListByPriority(Critical) len = %d, want 0", len(none))
	}
}

func TestTaskStore_ListOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	ts := New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		task := newTask(t, "t", domain.PriorityLow)
		ids = append(ids, task.ID())
		_, _ = ts.Add(ctx, task)
		time.Sleep(time.Millisecond)
	}

	list, _ := ts.ListAll(ctx)
	for i, task := range list {
		if task.ID() != ids[i] {
			t.Fatalf("ListAll()[%d] = %s, want %s", i, task.ID(), ids[i])
		}
	}
}

func TestTaskStore_ConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	ts := New()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			task, err := domain.New("x", "d", domain.PriorityLow, time.Now().Add(time.Hour))
			if err != nil {
				return
			}
			_, _ = ts.Add(ctx, task)
		}()
	}

	wg.Wait()

	list, err := ts.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() err = %v, want nil", err)
	}
	if len(list) != n {
		t.Fatalf("ListAll() len = %d, want %d", len(list), n)
	}
}

func containsID(tasks []*domain.Task, id uuid.UUID) bool {
	for _, t := range tasks {
		if t.ID() == id {
			return true
		}
	}
	return false
}
