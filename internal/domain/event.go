package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventCreated   EventKind = "created"
	EventUpdated   EventKind = "updated"
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventCancelled EventKind = "cancelled"
)

// Event is an immutable record of one completed mutation.
type Event interface {
	Kind() EventKind
	TaskID() uuid.UUID
}

type TaskCreated struct {
	ID       uuid.UUID
	Title    string
	Priority TaskPriority
}

func (TaskCreated) Kind() EventKind     { return EventCreated }
func (e TaskCreated) TaskID() uuid.UUID { return e.ID }

type TaskUpdated struct {
	ID       uuid.UUID
	Title    string
	Priority TaskPriority
}

func (TaskUpdated) Kind() EventKind     { return EventUpdated }
func (e TaskUpdated) TaskID() uuid.UUID { return e.ID }

type TaskStarted struct {
	ID    uuid.UUID
	Title string
}

func (TaskStarted) Kind() EventKind     { return EventStarted }
func (e TaskStarted) TaskID() uuid.UUID { return e.ID }

type TaskCompleted struct {
	ID            uuid.UUID
	Title         string
	CompletedDate time.Time
}

func (TaskCompleted) Kind() EventKind     { return EventCompleted }
func (e TaskCompleted) TaskID() uuid.UUID { return e.ID }

type TaskCancelled struct {
	ID    uuid.UUID
	Title string
}

func (TaskCancelled) Kind() EventKind     { return EventCancelled }
func (e TaskCancelled) TaskID() uuid.UUID { return e.ID }
