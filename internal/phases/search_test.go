package phases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iduuid "github.com/JakeFAU/restaurant-pipeline/internal/id/uuid"
	"github.com/JakeFAU/restaurant-pipeline/internal/phases"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	queuemem "github.com/JakeFAU/restaurant-pipeline/internal/queue/memory"
)

type searcherFunc func(ctx context.Context, r pipeline.Restaurant) ([]string, error)

func (f searcherFunc) Search(ctx context.Context, r pipeline.Restaurant) ([]string, error) {
	return f(ctx, r)
}

func drainQueue(t *testing.T, q *queuemem.Queue) []pipeline.Task {
	t.Helper()
	var out []pipeline.Task
	for !q.IsEmpty() {
		task, err := q.Get(context.Background(), 10*time.Millisecond)
		require.NoError(t, err)
		q.TaskDone()
		out = append(out, task)
	}
	return out
}

func TestSearchQueuesWebsiteThenHits(t *testing.T) {
	t.Parallel()

	validate := queuemem.NewQueue()
	searcher := searcherFunc(func(_ context.Context, r pipeline.Restaurant) ([]string, error) {
		return []string{"https://guide.example/le-bistro", r.Website}, nil
	})
	search := phases.NewSearch(validate, searcher, iduuid.NewSequence(t.Name()), nil)

	r := pipeline.Restaurant{Name: "Le Bistro", Website: "https://bistro.fr/"}
	require.NoError(t, search.Run(context.Background(), pipeline.Task{RunID: "run-1", Restaurant: r, InitialSearch: true}))

	tasks := drainQueue(t, validate)
	require.Len(t, tasks, 2)
	require.Equal(t, "https://bistro.fr/", tasks[0].URL)
	require.InDelta(t, 1.0, tasks[0].PriorityHint, 1e-9)
	require.Equal(t, "https://guide.example/le-bistro", tasks[1].URL)
	require.Zero(t, tasks[1].PriorityHint)
	for _, task := range tasks {
		require.Equal(t, "run-1", task.RunID)
		require.Equal(t, r, task.Restaurant)
		require.True(t, task.InitialSearch)
		require.NotEmpty(t, task.ID)
	}
}

func TestSearchBlankWebsiteGetsNoHint(t *testing.T) {
	t.Parallel()

	validate := queuemem.NewQueue()
	searcher := searcherFunc(func(context.Context, pipeline.Restaurant) ([]string, error) {
		return []string{"https://guide.example/le-bistro"}, nil
	})
	search := phases.NewSearch(validate, searcher, iduuid.NewSequence(t.Name()), nil)

	r := pipeline.Restaurant{Name: "Le Bistro", Website: "   "}
	require.NoError(t, search.Run(context.Background(), pipeline.Task{Restaurant: r}))

	tasks := drainQueue(t, validate)
	require.Len(t, tasks, 1)
	require.Equal(t, "https://guide.example/le-bistro", tasks[0].URL)
	require.Zero(t, tasks[0].PriorityHint)
}

func TestSearchFallsBackToWebsite(t *testing.T) {
	t.Parallel()

	validate := queuemem.NewQueue()
	searcher := searcherFunc(func(context.Context, pipeline.Restaurant) ([]string, error) {
		return nil, errors.New("quota exceeded")
	})
	search := phases.NewSearch(validate, searcher, iduuid.NewSequence(t.Name()), nil)

	r := pipeline.Restaurant{Name: "Le Bistro", Website: "https://bistro.fr/"}
	require.NoError(t, search.Run(context.Background(), pipeline.Task{Restaurant: r}))
	require.Equal(t, 1, validate.Size())

	err := search.Run(context.Background(), pipeline.Task{Restaurant: pipeline.Restaurant{Name: "Nowhere"}})
	require.EqualError(t, err, `search "Nowhere": quota exceeded`)
}

func TestSearchWithoutCandidates(t *testing.T) {
	t.Parallel()

	search := phases.NewSearch(queuemem.NewQueue(), nil, iduuid.NewSequence(t.Name()), nil)
	err := search.Run(context.Background(), pipeline.Task{Restaurant: pipeline.Restaurant{Name: "Nowhere"}})
	require.ErrorIs(t, err, phases.ErrNoCandidates)
}
