package chat

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TaskSet runs detached units of work (song requests) so the receive loop
// never waits on them, while still letting shutdown await or abandon them.
type TaskSet struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewTaskSet returns an open TaskSet. Task contexts are cancelled when Shutdown gives up waiting.
func NewTaskSet(logger *slog.Logger) *TaskSet {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskSet{ctx: ctx, cancel: cancel, log: logger.With(slog.String("component", "tasks"))}
}

// Go starts fn in its own goroutine. It reports false once the set is shut down.
func (t *TaskSet) Go(name string, fn func(ctx context.Context)) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.log.Warn("task rejected after shutdown", slog.String("task", name))
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	t.active.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				t.log.Error("task panicked", slog.String("task", name), slog.Any("panic", r))
			}
		}()
		fn(t.ctx)
	}()
	return true
}

// Active returns the number of running tasks.
func (t *TaskSet) Active() int { return int(t.active.Load()) }

// Shutdown stops accepting tasks and waits up to grace for running ones. Tasks
// still running after grace are cancelled and awaited; their count is returned.
func (t *TaskSet) Shutdown(grace time.Duration) int {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		t.cancel()
		return 0
	case <-timer.C:
	}
	abandoned := t.Active()
	t.cancel()
	<-done
	return abandoned
}
