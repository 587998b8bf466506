package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"task-management/internal/domain"
	"task-management/internal/store"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const taskColumns = `id, title, description, status, priority, due_date, created_date, completed_date`

// TaskStore is a store.TaskStore over database/sql.
type TaskStore struct {
	db      *sql.DB
	dialect dialect
}

// Open connects with driver "postgres" (lib/pq) or "sqlite" (modernc.org/sqlite).
// For sqlite the dsn is a file path and its directory is created.
func Open(driver, dsn string) (*TaskStore, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps ":memory:" on a single database
		db.SetMaxOpenConns(1)
	}

	ts := &TaskStore{db: db, dialect: d}
	if err := ts.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ts, nil
}

func (ts *TaskStore) configure() error {
	for _, p := range ts.dialect.pragmas {
		if _, err := ts.db.Exec(p); err != nil {
			return fmt.Errorf("%s pragma %q: %w", ts.dialect.driver, p, err)
		}
	}
	return nil
}

// Migrate creates the tasks table and its indexes when missing.
func (ts *TaskStore) Migrate(ctx context.Context) error {
	for _, stmt := range ts.dialect.schema {
		if _, err := ts.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (ts *TaskStore) Ping(ctx context.Context) error {
	return ts.db.PingContext(ctx)
}

func (ts *TaskStore) DB() *sql.DB { return ts.db }

func (ts *TaskStore) Driver() string { return ts.dialect.driver }

func (ts *TaskStore) Close() error {
	if ts.db == nil {
		return nil
	}
	return ts.db.Close()
}

func (ts *TaskStore) Add(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	s := task.Snapshot()

	_, err := ts.db.ExecContext(ctx, ts.dialect.rebind(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID.String(), s.Title, s.Description, string(s.Status), string(s.Priority),
		encodeTime(s.DueDate), encodeTime(s.CreatedDate), completedArg(s),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task %s: %w", s.ID, err)
	}
	return task, nil
}

func (ts *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := ts.db.QueryRowContext(ctx, ts.dialect.rebind(`
		SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id.String())

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// Update overwrites every mutable column; last writer wins.
func (ts *TaskStore) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	s := task.Snapshot()

	res, err := ts.db.ExecContext(ctx, ts.dialect.rebind(`
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, completed_date = ?
		WHERE id = ?`),
		s.Title, s.Description, string(s.Status), string(s.Priority),
		encodeTime(s.DueDate), completedArg(s), s.ID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", s.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return task, nil
}

func (ts *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := ts.db.ExecContext(ctx, ts.dialect.rebind(`DELETE FROM tasks WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return expectOneRow(res)
}

func (ts *TaskStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	err := ts.db.QueryRowContext(ctx, ts.dialect.rebind(`SELECT COUNT(1) FROM tasks WHERE id = ?`), id.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check task %s: %w", id, err)
	}
	return n > 0, nil
}

func (ts *TaskStore) ListAll(ctx context.Context) ([]*domain.Task, error) {
	return ts.list(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_date, id`)
}

func (ts *TaskStore) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	return ts.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_date, id`, string(status))
}

func (ts *TaskStore) ListByPriority(ctx context.Context, priority domain.TaskPriority) ([]*domain.Task, error) {
	return ts.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE priority = ? ORDER BY created_date, id`, string(priority))
}

func (ts *TaskStore) list(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := ts.db.QueryContext(ctx, ts.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var (
		id, title, description, status, priority string
		due, created, completed                  timeValue
	)
	if err := row.Scan(&id, &title, &description, &status, &priority, &due, &created, &completed); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}

	s := domain.Snapshot{
		ID:          parsedID,
		Title:       title,
		Description: description,
		Status:      domain.TaskStatus(status),
		Priority:    domain.TaskPriority(priority),
		DueDate:     due.t,
		CreatedDate: created.t,
	}
	if completed.valid {
		c := completed.t
		s.CompletedDate = &c
	}
	return domain.Restore(s), nil
}

func completedArg(s domain.Snapshot) any {
	if s.CompletedDate == nil {
		return nil
	}
	return encodeTime(*s.CompletedDate)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
