package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
)

// stepClock advances by one second on every read.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newStore(t *testing.T) (*FrontierStore, *stepClock) {
	t.Helper()

	clock := &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "frontier.db"), clock, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func registerQueued(t *testing.T, store *FrontierStore, rawURL string, priority float64) int64 {
	t.Helper()
	ctx := context.Background()

	host, err := frontier.ExtractHost(rawURL)
	require.NoError(t, err)
	domainID, _, err := store.RegisterDomain(ctx, host)
	require.NoError(t, err)
	sourceID, outcome, err := store.RegisterSource(ctx, domainID, 0.5)
	require.NoError(t, err)
	if outcome == frontier.Conflict {
		sourceID, _, err = store.LookupSource(ctx, domainID)
		require.NoError(t, err)
	}
	urlID, _, err := store.RegisterURL(ctx, rawURL, sourceID)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(ctx, urlID, priority))
	return urlID
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), " ", nil, nil)
	require.EqualError(t, err, "sqlite path is required")
}

func TestRegisterDomainIsIdempotent(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	first, outcome, err := store.RegisterDomain(ctx, "bistro.fr")
	require.NoError(t, err)
	require.Equal(t, frontier.Created, outcome)

	second, outcome, err := store.RegisterDomain(ctx, "bistro.fr")
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)
	require.Equal(t, first, second)

	d, outcome, err := store.Domain(ctx, "bistro.fr")
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)
	require.Equal(t, int64(2), d.VisitCount)

	_, outcome, err = store.Domain(ctx, "unknown.example")
	require.NoError(t, err)
	require.Equal(t, frontier.NotFound, outcome)
}

func TestRegisterSourceConflictThenLookup(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	domainID, _, err := store.RegisterDomain(ctx, "bistro.fr")
	require.NoError(t, err)

	sourceID, outcome, err := store.RegisterSource(ctx, domainID, 0.8)
	require.NoError(t, err)
	require.Equal(t, frontier.Created, outcome)
	require.NotZero(t, sourceID)

	again, outcome, err := store.RegisterSource(ctx, domainID, 0.8)
	require.NoError(t, err)
	require.Equal(t, frontier.Conflict, outcome)
	require.Zero(t, again)

	found, outcome, err := store.LookupSource(ctx, domainID)
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)
	require.Equal(t, sourceID, found)

	_, outcome, err = store.LookupSource(ctx, domainID+100)
	require.NoError(t, err)
	require.Equal(t, frontier.NotFound, outcome)
}

func TestRegisterURLRefreshesLastCrawled(t *testing.T) {
	t.Parallel()
	store, clock := newStore(t)
	ctx := context.Background()

	domainID, _, err := store.RegisterDomain(ctx, "bistro.fr")
	require.NoError(t, err)
	sourceID, _, err := store.RegisterSource(ctx, domainID, 0.5)
	require.NoError(t, err)

	first, outcome, err := store.RegisterURL(ctx, "https://bistro.fr/menu", sourceID)
	require.NoError(t, err)
	require.Equal(t, frontier.Created, outcome)

	second, outcome, err := store.RegisterURL(ctx, "https://bistro.fr/menu", sourceID)
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)
	require.Equal(t, first, second)

	u, outcome, err := store.URL(ctx, "https://bistro.fr/menu")
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)
	require.Equal(t, sourceID, u.SourceID)
	require.Equal(t, clock.now, u.LastCrawled)
	require.True(t, u.FirstSeen.Before(u.LastCrawled))
}

func TestEnqueueUpsertOverwritesPriority(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	urlID := registerQueued(t, store, "https://bistro.fr/", 2)
	require.NoError(t, store.Enqueue(ctx, urlID, 7))

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, depth)

	head, outcome, err := store.PeekHighestPriority(ctx)
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)
	require.Equal(t, "https://bistro.fr/", head.URL)
	require.InDelta(t, 7.0, head.Priority, 1e-9)
}

func TestPeekOrdersByPriorityThenQueuedAt(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	registerQueued(t, store, "https://a.example/", 5)
	registerQueued(t, store, "https://b.example/", 9)
	registerQueued(t, store, "https://c.example/", 9)

	head, _, err := store.PeekHighestPriority(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://b.example/", head.URL)

	outcome, err := store.Dequeue(ctx, head.URL)
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)

	head, _, err = store.PeekHighestPriority(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://c.example/", head.URL)

	outcome, err = store.Reprioritize(ctx, "https://a.example/", 10)
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)

	head, _, err = store.PeekHighestPriority(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://a.example/", head.URL)
}

func TestDequeueEmptiesQueue(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	registerQueued(t, store, "https://bistro.fr/", 5)

	outcome, err := store.Dequeue(ctx, "https://bistro.fr/")
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	require.Zero(t, depth)

	_, outcome, err = store.PeekHighestPriority(ctx)
	require.NoError(t, err)
	require.Equal(t, frontier.NotFound, outcome)
}

func TestUnknownURLIsNotAnError(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	ctx := context.Background()

	outcome, err := store.Dequeue(ctx, "http://unknown")
	require.NoError(t, err)
	require.Equal(t, frontier.NotFound, outcome)

	outcome, err = store.Reprioritize(ctx, "http://unknown", 3)
	require.NoError(t, err)
	require.Equal(t, frontier.NotFound, outcome)

	_, outcome, err = store.URL(ctx, "http://unknown")
	require.NoError(t, err)
	require.Equal(t, frontier.NotFound, outcome)
}
