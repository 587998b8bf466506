// Package events delivers drained task events to subscribers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"task-management/internal/domain"
)

type Subscriber interface {
	Handle(ctx context.Context, e domain.Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, e domain.Event) error

func (f SubscriberFunc) Handle(ctx context.Context, e domain.Event) error { return f(ctx, e) }

type Dispatcher interface {
	Dispatch(ctx context.Context, batch []domain.Event) error
}

// Fanout hands every event to every subscriber in registration order. A
// failing subscriber does not stop delivery to the others; all failures are
// joined into the returned error.
type Fanout struct {
	mu   sync.RWMutex
	subs []namedSubscriber
}

type namedSubscriber struct {
	name string
	sub  Subscriber
}

func NewFanout() *Fanout {
	return &Fanout{}
}

func (f *Fanout) Subscribe(name string, s Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, namedSubscriber{name: name, sub: s})
}

func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *Fanout) Dispatch(ctx context.Context, batch []domain.Event) error {
	f.mu.RLock()
	subs := make([]namedSubscriber, len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()

	var errs []error
	for _, e := range batch {
		for _, s := range subs {
			if err := s.sub.Handle(ctx, e); err != nil {
				errs = append(errs, fmt.Errorf("subscriber %s: %s %s: %w", s.name, e.Kind(), e.TaskID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
