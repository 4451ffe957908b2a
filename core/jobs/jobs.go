// Package jobs provides the background job contracts used by the
// coordinator gateway to process submitted user operations asynchronously,
// plus an in-process queue implementation.
package jobs

import "context"

// Job represents a unit of background work.
type Job interface {
	// Type returns a string identifier for the job type.
	Type() string
	// Payload returns the job's data.
	Payload() any
	// Context returns the context associated with the job.
	Context() context.Context
}

// BaseJob provides a basic implementation for common Job methods. Embed it
// in concrete job structs to reduce boilerplate.
type BaseJob struct {
	JobType string `json:"job_type"`
	Data    any    `json:"data"`
	Ctx     context.Context `json:"-"`
}

func (b *BaseJob) Type() string { return b.JobType }

func (b *BaseJob) Payload() any { return b.Data }

func (b *BaseJob) Context() context.Context {
	if b.Ctx == nil {
		return context.Background()
	}
	return b.Ctx
}

// Handler processes a specific type of job.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

// Enqueuer adds jobs to a queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Worker drains a queue, dispatching each job to the handler registered for
// its type.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	RegisterHandler(jobType string, h Handler) error
}
