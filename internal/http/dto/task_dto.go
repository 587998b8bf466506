package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"task-management/internal/domain"
	"task-management/internal/service"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	DueDate     DueDate   `json:"dueDate"`
}

type UpdateTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	DueDate     DueDate   `json:"dueDate"`
}

// localLayouts are the zone-less forms sent by datetime-local inputs.
var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// DueDate accepts RFC 3339 and zone-less local date-times, which are read as
// UTC.
type DueDate struct {
	time.Time
}

func (d *DueDate) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("dueDate must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		d.Time = t
		return nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("dueDate %q is not an RFC 3339 or yyyy-MM-ddTHH:mm[:ss] time", s)
}

type TaskResponse struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	DueDate       time.Time  `json:"dueDate"`
	CreatedDate   time.Time  `json:"createdDate"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
}

type StatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	Overdue  int            `json:"overdue"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func FromTask(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID(),
		Title:       t.Title(),
		Description: t.Description(),
		Status:      t.Status().String(),
		Priority:    t.Priority().String(),
		DueDate:     t.DueDate(),
		CreatedDate: t.CreatedDate(),
	}
	if c, ok := t.CompletedDate(); ok {
		resp.CompletedDate = &c
	}
	return resp
}

func FromTasks(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromTask(t))
	}
	return out
}

func FromStats(s service.Stats) StatsResponse {
	byStatus := make(map[string]int, len(s.ByStatus))
	for k, v := range s.ByStatus {
		byStatus[k.String()] = v
	}
	return StatsResponse{Total: s.Total, ByStatus: byStatus, Overdue: s.Overdue}
}
