package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Task defines a generic interface for long-running background tasks.
// A Task runs until its work is done or the context is canceled.
type Task interface {
	Run(context.Context) error
}

// TaskFunc is the func form of Task.
type TaskFunc func(context.Context) error

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}
