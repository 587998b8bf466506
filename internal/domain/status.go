package domain

import (
	"fmt"
	"strings"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "InProgress"
	StatusCompleted  TaskStatus = "Completed"
	StatusCancelled  TaskStatus = "Cancelled"
)

var statuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

// Statuses returns every status in lifecycle order.
func Statuses() []TaskStatus {
	out := make([]TaskStatus, len(statuses))
	copy(out, statuses)
	return out
}

func (s TaskStatus) Valid() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s except Cancelled → Cancelled.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s TaskStatus) String() string { return string(s) }

// ParseStatus accepts any casing of a status name.
func ParseStatus(raw string) (TaskStatus, error) {
	for _, v := range statuses {
		if strings.EqualFold(strings.TrimSpace(raw), string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown task status %q", raw)
}

type TaskPriority string

const (
	PriorityLow      TaskPriority = "Low"
	PriorityMedium   TaskPriority = "Medium"
	PriorityHigh     TaskPriority = "High"
	PriorityCritical TaskPriority = "Critical"
)

var priorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func Priorities() []TaskPriority {
	out := make([]TaskPriority, len(priorities))
	copy(out, priorities)
	return out
}

func (p TaskPriority) Valid() bool {
	for _, v := range priorities {
		if p == v {
			return true
		}
	}
	return false
}

func (p TaskPriority) String() string { return string(p) }

func ParsePriority(raw string) (TaskPriority, error) {
	for _, v := range priorities {
		if strings.EqualFold(strings.TrimSpace(raw), string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown task priority %q", raw)
}

// CanTransition is the whole transition graph:
//
//	Pending    -> InProgress
//	InProgress -> Completed
//	Pending | InProgress | Cancelled -> Cancelled
func CanTransition(from, to TaskStatus) bool {
	switch to {
	case StatusInProgress:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusInProgress
	case StatusCancelled:
		return from.Valid() && from != StatusCompleted
	default:
		return false
	}
}
