package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"arbor/core/logger"
)

var (
	errQueueClosed      = errors.New("jobs: queue closed")
	errHandlerExists    = errors.New("jobs: handler already registered")
	errAlreadyStarted   = errors.New("jobs: worker already started")
	errMissingHandler   = errors.New("jobs: no handler for job type")
)

// InprocQueue is a channel-backed queue that is both Enqueuer and Worker.
type InprocQueue struct {
	mu       sync.Mutex
	ch       chan Job
	handlers map[string]Handler
	started  bool
	closed   bool
	done     chan struct{}
}

// NewInprocQueue returns an in-process queue with the given depth.
func NewInprocQueue(depth int) *InprocQueue {
	if depth <= 0 {
		depth = 64
	}
	return &InprocQueue{
		ch:       make(chan Job, depth),
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// RegisterHandler registers a handler for a job type.
func (q *InprocQueue) RegisterHandler(jobType string, h Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.handlers[jobType]; exists {
		return fmt.Errorf("%w: %s", errHandlerExists, jobType)
	}
	q.handlers[jobType] = h
	return nil
}

// Enqueue adds a job to the queue.
func (q *InprocQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return errQueueClosed
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start drains the queue until the context is canceled or Stop is called.
func (q *InprocQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return errAlreadyStarted
	}
	q.started = true
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		for {
			select {
			case job, ok := <-q.ch:
				if !ok {
					return
				}
				q.dispatch(ctx, job)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (q *InprocQueue) dispatch(ctx context.Context, job Job) {
	q.mu.Lock()
	h := q.handlers[job.Type()]
	q.mu.Unlock()
	if h == nil {
		logger.Warn(ctx, "Dropping job with no registered handler", zap.String("job_type", job.Type()))
		return
	}
	if err := h.Handle(job.Context(), job); err != nil {
		logger.Error(ctx, "Job handler failed", zap.String("job_type", job.Type()), zap.Error(err))
	}
}

// Stop closes the queue. In-flight jobs complete; pending jobs are dropped
// once the worker context ends.
func (q *InprocQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
