package store

import (
	"context"
	"errors"
	"sort"

	"task-management/internal/domain"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("task not found")

// TaskStore persists tasks. List methods order by creation date, then id.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Add(ctx context.Context, t *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) (*domain.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ListAll(ctx context.Context) ([]*domain.Task, error)
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)
	ListByPriority(ctx context.Context, priority domain.TaskPriority) ([]*domain.Task, error)
}

// SortSnapshots applies the list ordering shared by every store.
func SortSnapshots(s []domain.Snapshot) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].CreatedDate.Equal(s[j].CreatedDate) {
			return s[i].CreatedDate.Before(s[j].CreatedDate)
		}
		return s[i].ID.String() < s[j].ID.String()
	})
}
