package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"task-management/internal/domain"
	"task-management/internal/http/dto"
	"task-management/internal/service"

	"github.com/google/uuid"
)

type TaskService interface {
	CreateTask(ctx context.Context, in service.CreateInput) (*domain.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context, f service.Filter) ([]*domain.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, in service.UpdateInput) (*domain.Task, error)
	StartTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CompleteTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CancelTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (service.Stats, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type TaskHandler struct {
	taskService TaskService
	pinger      Pinger
	logger      *slog.Logger
}

// New builds the handler. A nil pinger makes /healthz always healthy.
func New(taskService TaskService, pinger Pinger, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{taskService: taskService, pinger: pinger, logger: logger}
}

// POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	priority, ok := parsePriority(w, req.Priority)
	if !ok {
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), service.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		DueDate:     req.DueDate.Time,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID().String())
	writeJSON(w, http.StatusCreated, dto.FromTask(task))
}

// GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromTask(task))
}

// GET /api/tasks?status=&priority=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var f service.Filter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = status
	}
	if raw := r.URL.Query().Get("priority"); raw != "" {
		priority, ok := parsePriority(w, raw)
		if !ok {
			return
		}
		f.Priority = priority
	}

	h.list(w, r, f)
}

// GET /api/tasks/status/{status}
func (h *TaskHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseStatus(r.PathValue("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.list(w, r, service.Filter{Status: status})
}

// GET /api/tasks/priority/{priority}
func (h *TaskHandler) ListByPriority(w http.ResponseWriter, r *http.Request) {
	priority, err := domain.ParsePriority(r.PathValue("priority"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.list(w, r, service.Filter{Priority: priority})
}

// PUT /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	priority, ok := parsePriority(w, req.Priority)
	if !ok {
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), id, service.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		DueDate:     req.DueDate.Time,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromTask(task))
}

// POST /api/tasks/{id}/start
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.taskService.StartTask)
}

// POST /api/tasks/{id}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.taskService.CompleteTask)
}

// POST /api/tasks/{id}/cancel
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.taskService.CancelTask)
}

// DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/tasks/stats
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.taskService.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromStats(st))
}

// GET /healthz
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, f service.Filter) {
	tasks, err := h.taskService.ListTasks(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromTasks(tasks))
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*domain.Task, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := op(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromTask(task))
}

// fail maps service errors to status codes. Unknown errors are logged and
// hidden from the client.
func (h *TaskHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil || id == uuid.Nil {
		writeError(w, http.StatusBadRequest, service.ErrInvalidID.Error())
		return uuid.Nil, false
	}
	return id, true
}

// parsePriority leaves an empty value empty so the service default applies.
func parsePriority(w http.ResponseWriter, raw string) (domain.TaskPriority, bool) {
	if raw == "" {
		return "", true
	}
	p, err := domain.ParsePriority(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return p, true
}
