package phases_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/restaurant-pipeline/internal/fetcher/colly"
	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
	iduuid "github.com/JakeFAU/restaurant-pipeline/internal/id/uuid"
	"github.com/JakeFAU/restaurant-pipeline/internal/phases"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	"github.com/JakeFAU/restaurant-pipeline/internal/policy/ratelimit"
	"github.com/JakeFAU/restaurant-pipeline/internal/progress"
	queuemem "github.com/JakeFAU/restaurant-pipeline/internal/queue/memory"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/menu", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Menu</title></head><body>Tasting menu</body></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type extractFixture struct {
	store     frontier.Store
	transform *queuemem.Queue
	catalog   *phases.Catalog
	events    *recordingEmitter
	extract   *phases.Extract
}

func newExtractFixture(t *testing.T) *extractFixture {
	t.Helper()
	f := &extractFixture{
		store:     openStore(t),
		transform: queuemem.NewQueue(),
		catalog:   phases.NewCatalog(),
		events:    &recordingEmitter{},
	}
	extract, err := phases.NewExtract(phases.ExtractDeps{
		Frontier:  f.store,
		Fetcher:   collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second}, nil),
		Limiter:   ratelimit.New(ratelimit.Config{RPS: 100, Burst: 10}, nil),
		Transform: f.transform,
		Catalog:   f.catalog,
		IDs:       iduuid.NewSequence(t.Name()),
		Emitter:   f.events,
		Clock:     fixedClock{now: testNow},
	})
	require.NoError(t, err)
	f.extract = extract
	return f
}

func (f *extractFixture) queue(t *testing.T, rawURL string, priority float64) string {
	t.Helper()
	ctx := context.Background()
	normalized, err := frontier.NormalizeURL(rawURL)
	require.NoError(t, err)
	host, err := frontier.ExtractHost(normalized)
	require.NoError(t, err)
	domainID, _, err := f.store.RegisterDomain(ctx, host)
	require.NoError(t, err)
	sourceID, outcome, err := f.store.RegisterSource(ctx, domainID, 0.5)
	require.NoError(t, err)
	if outcome == frontier.Conflict {
		sourceID, _, err = f.store.LookupSource(ctx, domainID)
		require.NoError(t, err)
	}
	urlID, _, err := f.store.RegisterURL(ctx, normalized, sourceID)
	require.NoError(t, err)
	require.NoError(t, f.store.Enqueue(ctx, urlID, priority))
	return normalized
}

func TestExtractFetchesHeadAndHandsOff(t *testing.T) {
	t.Parallel()
	f := newExtractFixture(t)
	srv := newSite(t)

	menu := f.queue(t, srv.URL+"/menu", 9)
	f.queue(t, srv.URL+"/gone", 2)
	r := pipeline.Restaurant{Name: "Le Bistro"}
	f.catalog.Remember(menu, r)

	ctx := pipeline.WithRunID(context.Background(), "run-1")
	consumed, err := f.extract.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, menu, consumed)

	depth, err := f.store.QueueDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, depth)

	require.Equal(t, 1, f.transform.Size())
	task, err := f.transform.Get(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "run-1", task.RunID)
	require.Equal(t, menu, task.URL)
	require.Equal(t, r, task.Restaurant)
	require.NotNil(t, task.Document)
	require.Contains(t, string(task.Document.Body), "Tasting menu")

	fetches := f.events.stage(progress.StageFetchDone)
	require.Len(t, fetches, 1)
	require.Equal(t, progress.Status2xx, fetches[0].StatusClass)
	require.Equal(t, "127.0.0.1", fetches[0].Site)
	require.Equal(t, "run-1", fetches[0].RunID)
	require.NoError(t, fetches[0].Validate())
}

func TestExtractLeavesFailedFetchQueued(t *testing.T) {
	t.Parallel()
	f := newExtractFixture(t)
	srv := newSite(t)

	gone := f.queue(t, srv.URL+"/gone", 5)

	ctx := pipeline.WithRunID(context.Background(), "run-1")
	consumed, err := f.extract.Run(ctx)
	require.Error(t, err)
	require.True(t, collyfetcher.IsStatus(err, http.StatusGone))
	require.Equal(t, gone, consumed)

	depth, err := f.store.QueueDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, depth)
	require.True(t, f.transform.IsEmpty())

	fetches := f.events.stage(progress.StageFetchDone)
	require.Len(t, fetches, 1)
	require.Equal(t, progress.Status4xx, fetches[0].StatusClass)
}

func TestExtractOnEmptyFrontier(t *testing.T) {
	t.Parallel()
	f := newExtractFixture(t)

	consumed, err := f.extract.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, consumed)
}

func TestNewExtractRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := phases.NewExtract(phases.ExtractDeps{})
	require.EqualError(t, err, "extract: frontier is required")
}
