package events

import (
	"encoding/json"
	"fmt"
	"time"

	"task-management/internal/domain"

	"github.com/google/uuid"
)

// Envelope is the JSON wire form of an event.
type Envelope struct {
	Kind          domain.EventKind    `json:"kind"`
	TaskID        uuid.UUID           `json:"taskId"`
	Title         string              `json:"title"`
	Priority      domain.TaskPriority `json:"priority,omitempty"`
	CompletedDate *time.Time          `json:"completedDate,omitempty"`
	OccurredAt    time.Time           `json:"occurredAt"`
}

func NewEnvelope(e domain.Event, at time.Time) (Envelope, error) {
	env := Envelope{Kind: e.Kind(), TaskID: e.TaskID(), OccurredAt: at.UTC()}

	switch v := e.(type) {
	case domain.TaskCreated:
		env.Title, env.Priority = v.Title, v.Priority
	case domain.TaskUpdated:
		env.Title, env.Priority = v.Title, v.Priority
	case domain.TaskStarted:
		env.Title = v.Title
	case domain.TaskCompleted:
		c := v.CompletedDate.UTC()
		env.Title, env.CompletedDate = v.Title, &c
	case domain.TaskCancelled:
		env.Title = v.Title
	default:
		return Envelope{}, fmt.Errorf("unknown event type %T", e)
	}
	return env, nil
}

// Event converts the envelope back to its domain value.
func (env Envelope) Event() (domain.Event, error) {
	switch env.Kind {
	case domain.EventCreated:
		return domain.TaskCreated{ID: env.TaskID, Title: env.Title, Priority: env.Priority}, nil
	case domain.EventUpdated:
		return domain.TaskUpdated{ID: env.TaskID, Title: env.Title, Priority: env.Priority}, nil
	case domain.EventStarted:
		return domain.TaskStarted{ID: env.TaskID, Title: env.Title}, nil
	case domain.EventCompleted:
		if env.CompletedDate == nil {
			return nil, fmt.Errorf("completed event for %s has no completedDate", env.TaskID)
		}
		return domain.TaskCompleted{ID: env.TaskID, Title: env.Title, CompletedDate: *env.CompletedDate}, nil
	case domain.EventCancelled:
		return domain.TaskCancelled{ID: env.TaskID, Title: env.Title}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
}

func Encode(e domain.Event, at time.Time) ([]byte, error) {
	env, err := NewEnvelope(e, at)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode event: %w", err)
	}
	if _, err := env.Event(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
