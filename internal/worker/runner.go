// Package worker runs a background loop with cooperative stop.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop is the body of a worker. It must return soon after stop is closed;
// ctx is cancelled only on shutdown and aborts blocking calls.
type Loop func(ctx context.Context, stop <-chan struct{})

// Runner runs at most one instance of a loop at a time.
type Runner struct {
	name   string
	loop   Loop
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	// again is set when Start is called during a run so the loop runs once
	// more before the runner goes idle.
	again bool
	ctx   context.Context //nolint:containedctx // restarted by Pause's resume
	stop  chan struct{}
	done  chan struct{}
}

// New creates an idle runner.
func New(name string, loop Loop, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{name: name, loop: loop, logger: logger}
}

// Start runs the loop in the background and reports whether a new run
// began. Calling Start on a running runner schedules one more pass instead.
func (r *Runner) Start(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.again = true
		return false
	}
	r.running, r.again = true, false
	r.ctx = ctx
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.logger.Debug("worker starting", "worker", r.name)
	go r.run(ctx, r.stop, r.done)
	return true
}

func (r *Runner) run(ctx context.Context, stop chan struct{}, done chan struct{}) {
	defer close(done)
	for {
		r.loop(ctx, stop)

		r.mu.Lock()
		if r.again && !Stopped(stop) && ctx.Err() == nil {
			r.again = false
			r.mu.Unlock()
			continue
		}
		r.running, r.again = false, false
		r.mu.Unlock()
		r.logger.Debug("worker stopped", "worker", r.name)
		return
	}
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop asks the running loop to return. It does not wait.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && !Stopped(r.stop) {
		close(r.stop)
	}
	r.again = false
}

// Wait blocks until the current run, if any, has returned.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops the loop and waits for it. The returned function restarts
// it with its original context if it was running.
func (r *Runner) Pause(ctx context.Context) (func(), error) {
	r.mu.Lock()
	wasRunning, runCtx := r.running, r.ctx
	r.mu.Unlock()

	r.Stop()
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	return func() {
		if wasRunning {
			r.Start(runCtx)
		}
	}, nil
}

// Stopped reports whether stop is closed.
func Stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Sleep waits for d and reports whether it elapsed without stop closing or
// ctx ending.
func Sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return !Stopped(stop) && ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}
