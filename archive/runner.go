// Package archive implements the best-effort snapshotting of remote
// accounts after a successful remote authentication. Everything here runs
// off the request path: failures are logged and never reach a caller.
package archive

import (
	"context"
	"sync"

	etwin "github.com/eternaltwin/etwin"
)

// Runner spawns detached archival tasks. Errors and panics inside a task
// land in the logger, never on the caller's error channel. Wait drains
// in-flight tasks; tests use it to observe archival results
// deterministically.
type Runner struct {
	logger etwin.Logger
	wg     sync.WaitGroup
}

type RunnerOption func(*Runner)

func WithRunnerLogger(logger etwin.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: etwin.DefaultLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Go runs fn on its own goroutine with a fresh background context: the
// triggering request may complete, and its context expire, long before the
// task does.
func (r *Runner) Go(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("archival task %s panicked: %v", name, rec)
			}
		}()
		fn(context.Background())
	}()
}

// Wait blocks until every task spawned so far has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
