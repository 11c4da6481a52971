package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
)

// Sentinel errors shared by queues and the orchestrator.
var (
	// ErrQueueEmpty is returned by Queue.Get when the timeout elapses with
	// nothing to hand out.
	ErrQueueEmpty = errors.New("queue empty")
	// ErrQueueClosed is returned once a queue has been closed.
	ErrQueueClosed = errors.New("queue closed")
	// ErrRunAborted is returned when a transition hook declines to continue.
	ErrRunAborted = errors.New("run aborted")
)

// Queue is a FIFO of tasks for one phase.
type Queue interface {
	Put(task Task) error
	Get(ctx context.Context, timeout time.Duration) (Task, error)
	TaskDone()
	IsEmpty() bool
	Size() int
}

// Frontier is the part of frontier.Store the orchestrator drives directly.
type Frontier interface {
	PeekHighestPriority(ctx context.Context) (frontier.Entry, frontier.Outcome, error)
	Dequeue(ctx context.Context, fullURL string) (frontier.Outcome, error)
	QueueDepth(ctx context.Context) (int, error)
}

// BatchSource hands out the next slice of restaurants to process.
type BatchSource interface {
	GetBatch(ctx context.Context, size int) ([]Restaurant, error)
}

// TaskFunc processes one queued task. Any follow-up work is put on the
// downstream queue by the function itself.
type TaskFunc func(ctx context.Context, task Task) error

// ExtractFunc consumes the head of the frontier and reports the URL it
// processed.
type ExtractFunc func(ctx context.Context) (string, error)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and task IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hooks lets callers observe or gate state transitions.
type Hooks interface {
	// BeforeTransition runs before the orchestrator enters state. A non-nil
	// error stops the run. It is not called for StateDone, which is entered
	// once load has finished.
	BeforeTransition(ctx context.Context, state State) error
}

// HookFunc adapts a function to Hooks.
type HookFunc func(ctx context.Context, state State) error

// BeforeTransition calls f.
func (f HookFunc) BeforeTransition(ctx context.Context, state State) error {
	return f(ctx, state)
}
