package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// ErrForcedExit is returned by Wait when a second stop signal arrives
// before all runnables have stopped.
var ErrForcedExit = errors.New("forced exit")

// Runner runs Runnables concurrently. The first failure stops the
// others.
type Runner struct {
	Context context.Context

	stop    context.CancelFunc
	names   []string
	results chan error
	forced  chan struct{}
}

// NewRunner creates a runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner stopped when ctx is done.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Context: ctx,
		stop:    cancel,
		results: make(chan error),
		forced:  make(chan struct{}),
	}
}

// HandleSignals stops the runner on the first of sigs, SIGINT and
// SIGTERM by default. A second signal makes Wait return ErrForcedExit.
func (r *Runner) HandleSignals(sigs ...os.Signal) *Runner {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, sigs...)
	go func() {
		sig := <-sigCh
		glog.Infof("%v received, stopping", sig)
		r.stop()
		sig = <-sigCh
		glog.Errorf("%v received again, forcing exit", sig)
		close(r.forced)
	}()
	return r
}

// Stop cancels the context of all runnables.
func (r *Runner) Stop() {
	r.stop()
}

// Go starts runnables with the runner context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := "runner#" + strconv.Itoa(len(r.names))
		if named, ok := runnable.(Named); ok {
			name = named.Name()
		}
		r.names = append(r.names, name)
		go func(runnable Runnable, name string) {
			glog.V(4).Infof("%s started", name)
			err := runnable.Run(r.Context)
			glog.V(4).Infof("%s stopped: %v", name, err)
			if err != nil {
				err = &RunnerError{Runner: name, Err: err}
			}
			r.results <- err
		}(runnable, name)
	}
	return r
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Wait waits for all runnables and aggregates their failures.
// Cancellation is not a failure.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.names {
		select {
		case <-r.forced:
			return ErrForcedExit
		case err := <-r.results:
			if err != nil && !canceled(err) {
				glog.Errorf("%v", err)
				errs.Add(err)
				r.stop()
			}
		}
	}
	return errs.Aggregate()
}

// ExitCode maps the result of Wait to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil || canceled(err):
		return 0
	case errors.Is(err, ErrForcedExit):
		return 130
	}
	return 1
}

// RunWithContextCancel runs fn, which doesn't accept a context. When
// ctx is done first, onCancel is called to make fn return, and the
// context error is returned.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-done
	return ctx.Err()
}

// RunWithContextCloser runs fn and closes closer exactly once, either
// on cancel or after fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeFn := func() { once.Do(func() { closer.Close() }) }
	defer closeFn()
	return RunWithContextCancel(ctx, closeFn, fn)
}
