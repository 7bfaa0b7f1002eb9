// internal/eventloop/loop.go
package eventloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// maxDrainTasks bounds a single Drain call so that a task which keeps
// re-posting itself cannot hang the caller.
const maxDrainTasks = 100000

// Task is one scheduled continuation on the loop.
type Task struct {
	name     string
	fn       func()
	canceled atomic.Bool
}

// Cancel prevents the task from running if it has not run yet.
func (t *Task) Cancel() {
	if t != nil {
		t.canceled.Store(true)
	}
}

// Canceled reports whether Cancel was called.
func (t *Task) Canceled() bool {
	return t != nil && t.canceled.Load()
}

// Loop is a single cooperative run queue, the equivalent of a page's UI
// thread. Tasks posted from any goroutine run one at a time, in FIFO order,
// on whichever goroutine is driving the loop (Run, Drain or Step).
type Loop struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   []*Task
	running bool

	wake chan struct{}
}

// New creates an idle loop.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		logger: logger.Named("eventloop"),
		wake:   make(chan struct{}, 1),
	}
}

// Post schedules fn to run on a later tick.
func (l *Loop) Post(fn func()) *Task {
	return l.PostNamed("", fn)
}

// PostNamed is Post with a name used in panic reports.
func (l *Loop) PostNamed(name string, fn func()) *Task {
	t := &Task{name: name, fn: fn}
	l.mu.Lock()
	l.queue = append(l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return t
}

// Pending returns the number of queued tasks, canceled ones included.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) pop() *Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	t := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return t
}

// Step runs the next queued task. It returns false if the queue was empty.
func (l *Loop) Step() bool {
	t := l.pop()
	if t == nil {
		return false
	}
	l.run(t)
	return true
}

// Drain runs tasks until the queue is empty, including tasks posted by the
// tasks it runs. It returns how many tasks were executed.
func (l *Loop) Drain() int {
	n := 0
	for n < maxDrainTasks && l.Step() {
		n++
	}
	if n == maxDrainTasks {
		l.logger.Warn("Drain stopped early; tasks keep rescheduling themselves.", zap.Int("executed", n), zap.Int("pending", l.Pending()))
	}
	return n
}

// Run drives the loop until ctx is canceled. Only one Run may be active.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("event loop is already running")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		for l.Step() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) run(t *Task) {
	if t.canceled.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered from panic in loop task.", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	t.fn()
}
