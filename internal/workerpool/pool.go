package workerpool

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"task-management/internal/domain"
	"task-management/internal/events"

	"github.com/google/uuid"
)

var (
	ErrPoolFull   = errors.New("event pool is full")
	ErrPoolClosed = errors.New("event pool is closed")
)

const DefaultDispatchTimeout = 30 * time.Second

// Batch is the set of events drained from one task by one operation.
type Batch struct {
	TaskID uuid.UUID
	Events []domain.Event
}

// ErrorHandler receives delivery failures from the workers.
type ErrorHandler func(b Batch, err error)

// Pool delivers batches asynchronously. Batches of the same task always go to
// the same worker, so their order is kept.
type Pool struct {
	queue           chan Batch
	dispatcher      events.Dispatcher
	onError         ErrorHandler
	dispatchTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	senders sync.WaitGroup

	// quit is closed when intake stops; abort cancels in-flight deliveries
	// once a Shutdown deadline has passed.
	quit  chan struct{}
	base  context.Context
	abort context.CancelFunc

	wg   sync.WaitGroup
	done chan struct{}
}

func New(poolSize int, dispatcher events.Dispatcher) *Pool {
	if poolSize < 1 {
		poolSize = 1
	}
	base, abort := context.WithCancel(context.Background())
	return &Pool{
		queue:           make(chan Batch, poolSize),
		dispatcher:      dispatcher,
		onError:         func(Batch, error) {},
		dispatchTimeout: DefaultDispatchTimeout,
		quit:            make(chan struct{}),
		base:            base,
		abort:           abort,
		done:            make(chan struct{}),
	}
}

// OnError must be set before Start.
func (p *Pool) OnError(h ErrorHandler) {
	if h != nil {
		p.onError = h
	}
}

// DispatchTimeout bounds a single delivery. It must be set before Start.
func (p *Pool) DispatchTimeout(d time.Duration) {
	if d > 0 {
		p.dispatchTimeout = d
	}
}

// Start launches the workers. With zero workers nothing drains the queue.
func (p *Pool) Start(workers int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	if workers <= 0 {
		close(p.done)
		return
	}

	shards := make([]chan Batch, workers)
	for i := range shards {
		shards[i] = make(chan Batch, cap(p.queue))
		p.wg.Add(1)
		go p.work(shards[i])
	}

	go p.route(shards)
}

// route moves batches from the queue to their shard until intake stops, then
// forwards whatever is still queued and closes the shards.
func (p *Pool) route(shards []chan Batch) {
	defer func() {
		for _, s := range shards {
			close(s)
		}
		p.wg.Wait()
		close(p.done)
	}()

	for {
		select {
		case b := <-p.queue:
			p.forward(shards, b)
		case <-p.quit:
			p.senders.Wait()
			for {
				select {
				case b := <-p.queue:
					p.forward(shards, b)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) forward(shards []chan Batch, b Batch) {
	select {
	case shards[shardFor(b.TaskID, len(shards))] <- b:
	case <-p.base.Done():
		p.onError(b, ErrPoolClosed)
	}
}

func (p *Pool) work(in <-chan Batch) {
	defer p.wg.Done()

	for b := range in {
		ctx, cancel := context.WithTimeout(p.base, p.dispatchTimeout)
		err := p.dispatcher.Dispatch(ctx, b.Events)
		cancel()
		if err != nil {
			p.onError(b, err)
		}
	}
}

// Enqueue never blocks.
func (p *Pool) Enqueue(b Batch) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- b:
		return nil
	default:
		return ErrPoolFull
	}
}

// Publish queues the events of one task, waiting for room while the queue is
// full. Once the pool is closed the batch is dispatched in the calling
// goroutine after everything queued before it has been delivered.
func (p *Pool) Publish(ctx context.Context, taskID uuid.UUID, evs []domain.Event) error {
	if len(evs) == 0 {
		return nil
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return p.publishClosed(ctx, taskID, evs)
	}
	p.senders.Add(1)
	p.mu.RUnlock()

	select {
	case p.queue <- Batch{TaskID: taskID, Events: evs}:
		p.senders.Done()
		return nil
	case <-ctx.Done():
		p.senders.Done()
		return fmt.Errorf("publish events of task %s: %w", taskID, ctx.Err())
	case <-p.quit:
		p.senders.Done()
		return p.publishClosed(ctx, taskID, evs)
	}
}

func (p *Pool) publishClosed(ctx context.Context, taskID uuid.UUID, evs []domain.Event) error {
	select {
	case <-p.done:
	case <-p.base.Done():
		// a successful Shutdown also cancels base, right after done
		select {
		case <-p.done:
		default:
			// workers may still hold earlier batches of this task
			return fmt.Errorf("publish events of task %s: %w", taskID, ErrPoolClosed)
		}
	case <-ctx.Done():
		return fmt.Errorf("publish events of task %s: %w", taskID, ctx.Err())
	}
	return p.dispatcher.Dispatch(ctx, evs)
}

// Shutdown stops intake and waits until every queued batch is delivered. When
// ctx ends first, in-flight deliveries are cancelled and ctx.Err is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.quit)
		if !p.started {
			p.started = true
			close(p.done)
		}
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		p.abort()
		return nil
	case <-ctx.Done():
		p.abort()
		return ctx.Err()
	}
}

func shardFor(id uuid.UUID, n int) int {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return int(h.Sum32() % uint32(n))
}
