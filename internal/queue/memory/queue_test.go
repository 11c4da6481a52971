package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.True(t, q.IsEmpty())
	require.NoError(t, q.Put(pipeline.Task{ID: "a"}))
	require.NoError(t, q.Put(pipeline.Task{ID: "b"}))
	require.Equal(t, 2, q.Size())

	first, err := q.Get(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "a", first.ID)
	q.TaskDone()

	second, err := q.Get(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "b", second.ID)
	require.True(t, q.IsEmpty())
	require.Equal(t, 1, q.Unfinished())
	q.TaskDone()
	require.Zero(t, q.Unfinished())
}

func TestQueueGetTimesOut(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	start := time.Now()
	_, err := q.Get(context.Background(), 20*time.Millisecond)
	require.ErrorIs(t, err, pipeline.ErrQueueEmpty)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueueGetWakesOnPut(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan pipeline.Task, 1)
	errCh := make(chan error, 1)

	go func() {
		task, err := q.Get(context.Background(), time.Second)
		if err != nil {
			errCh <- err
			return
		}
		result <- task
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(pipeline.Task{ID: "late"}))

	select {
	case err := <-errCh:
		t.Fatalf("Get() error = %v", err)
	case got := <-result:
		require.Equal(t, "late", got.ID)
	case <-time.After(time.Second):
		t.Fatal("get did not return task")
	}
}

func TestQueueGetHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Get(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Put(pipeline.Task{ID: "kept"}))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Put(pipeline.Task{}), pipeline.ErrQueueClosed)

	task, err := q.Get(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "kept", task.ID)

	_, err = q.Get(context.Background(), time.Second)
	require.ErrorIs(t, err, pipeline.ErrQueueClosed)
}
