package upload

import (
	"context"
	"time"
)

// Task is a recurring job started by Schedule. It stops when its function
// returns false, when Cancel is called, or when the parent context ends.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Schedule runs fn every interval, first after one full interval.
func Schedule(ctx context.Context, interval time.Duration, fn func(ctx context.Context) bool) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !fn(ctx) {
					return
				}
			}
		}
	}()

	return t
}

// Cancel stops the task. It is safe to call more than once and after the
// task has stopped by itself.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}
