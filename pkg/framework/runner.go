package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

type namedTask struct {
	Task
	name string
}

func (t *namedTask) Name() string {
	return t.name
}

// NamedTask wraps a Task with a name.
func NamedTask(name string, task Task) Task {
	return &namedTask{name: name, Task: task}
}

// Runner runs multiple Tasks and collects their errors.
type Runner struct {
	Context context.Context
	Tasks   []Task

	errCh  chan error
	exitCh chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		errCh:   make(chan error, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals handles CtrlC and SIGTERM from the system.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go spawns a Task with default context.
func (r *Runner) Go(tasks ...Task) *Runner {
	return r.GoWith(r.Context, tasks...)
}

// GoWith spawns a Task with a specified context.
func (r *Runner) GoWith(ctx context.Context, tasks ...Task) *Runner {
	for _, task := range tasks {
		var name string
		if named, ok := task.(Named); ok {
			name = named.Name()
		} else {
			name = strconv.Itoa(len(r.Tasks))
		}
		r.Tasks = append(r.Tasks, task)
		glog.V(4).Infof("start Task[%s]", name)
		go func(task Task, name string) {
			glog.V(4).Infof("Task[%s] started", name)
			r.errCh <- task.Run(ctx)
			glog.V(4).Infof("Task[%s] stopped", name)
		}(task, name)
	}
	return r
}

// Wait waits until all Tasks stop and aggregates errors.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Tasks {
		select {
		case <-r.exitCh:
			return errors.New("forced exit")
		case err := <-r.errCh:
			if err != context.Canceled {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs a func which doesn't accept a context.
// cancel is called only when the context is canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}

// RunWithContext is simplified form with no cancel callback.
func RunWithContext(ctx context.Context, fn func() error) error {
	return RunWithContextCancel(ctx, nil, fn)
}

// RunWithContextCloser is a convinient wrapper for RunWithContextCancel and
// ensures closer.Close is either called on cancel or exit of fn.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
