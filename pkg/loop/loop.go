// Package loop provides the single logic goroutine that owns overlay state.
//
// Work produced on other goroutines, such as a finished network call, is
// handed to the loop with Queue.Post and runs to completion on the loop
// goroutine before the next frame.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Queue is a FIFO of callbacks waiting for the logic goroutine.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

// Post schedules fn. It never blocks and is safe from any goroutine.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

// Drain runs every queued callback in order on the calling goroutine.
// Callbacks posted while draining run on the next Drain.
func (q *Queue) Drain() int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

// Pending returns the number of queued callbacks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Loop drains its queue and renders a frame on every tick.
type Loop struct {
	Queue

	interval time.Duration
	frame    func()
	logger   *slog.Logger
}

// New creates a loop running frame at fps frames per second.
func New(fps int, frame func(), logger *slog.Logger) (*Loop, error) {
	if fps <= 0 {
		return nil, errors.New("fps must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		interval: time.Second / time.Duration(fps),
		frame:    frame,
		logger:   logger.With("component", "loop"),
	}, nil
}

// Run blocks until ctx is done. Queued callbacks still pending at shutdown
// are drained before returning.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("event loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.Drain()
			l.logger.Info("event loop stopped")
			return nil
		case <-ticker.C:
			l.Drain()
			l.frame()
		}
	}
}
