// Package memory provides the in-process phase queue.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

// Queue is an unbounded FIFO of pipeline tasks, safe for concurrent use.
type Queue struct {
	mu         sync.Mutex
	items      []pipeline.Task
	unfinished int
	closed     bool
	notify     chan struct{}
}

var _ pipeline.Queue = (*Queue)(nil)

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Put appends a task to the tail.
func (q *Queue) Put(task pipeline.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return pipeline.ErrQueueClosed
	}
	q.items = append(q.items, task)
	q.unfinished++
	q.signal()
	return nil
}

// Get pops the head, waiting up to timeout for one to arrive. It returns
// pipeline.ErrQueueEmpty when the wait expires.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (pipeline.Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items[0] = pipeline.Task{}
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return task, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return pipeline.Task{}, pipeline.ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return pipeline.Task{}, ctx.Err()
		case <-timer.C:
			return pipeline.Task{}, pipeline.ErrQueueEmpty
		case <-q.notify:
		}
	}
}

// TaskDone marks one previously fetched task as processed.
func (q *Queue) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished > 0 {
		q.unfinished--
	}
}

// IsEmpty reports whether no tasks are waiting.
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// Size returns the number of waiting tasks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished counts tasks put but not yet marked done.
func (q *Queue) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Close rejects further puts and wakes blocked getters once drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
