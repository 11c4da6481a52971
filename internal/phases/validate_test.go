package phases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
	"github.com/JakeFAU/restaurant-pipeline/internal/phases"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	"github.com/JakeFAU/restaurant-pipeline/internal/policy/simple"
)

func TestValidateRegistersAndEnqueues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)
	catalog := phases.NewCatalog()
	validate := phases.NewValidate(store, phases.ValidateConfig{Credibility: 0.5}, nil, catalog, nil)

	r := pipeline.Restaurant{Name: "Le Bistro"}
	require.NoError(t, validate.Run(ctx, pipeline.Task{
		Restaurant:    r,
		URL:           "HTTPS://www.Bistro.fr/menu/?utm_source=x#top",
		InitialSearch: true,
	}))
	require.NoError(t, validate.Run(ctx, pipeline.Task{Restaurant: r, URL: "https://bistro.fr/about"}))

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, depth)

	head, _, err := store.PeekHighestPriority(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://www.bistro.fr/menu", head.URL)
	// base 5 + 2*0.5 credibility + 3 initial search boost
	require.InDelta(t, 9.0, head.Priority, 1e-9)

	d, outcome, err := store.Domain(ctx, "bistro.fr")
	require.NoError(t, err)
	require.Equal(t, frontier.Found, outcome)
	require.Equal(t, int64(2), d.VisitCount)

	got, ok := catalog.Lookup("https://bistro.fr/about")
	require.True(t, ok)
	require.Equal(t, r, got)
	require.Equal(t, 2, catalog.Len())
}

func TestValidateSkipsBlockedHosts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)
	validate := phases.NewValidate(store, phases.ValidateConfig{}, simple.New([]string{"*.tracker.example"}), nil, nil)

	require.NoError(t, validate.Run(ctx, pipeline.Task{URL: "https://ads.tracker.example/page"}))

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	require.Zero(t, depth)
}

func TestValidateRejectsBadURL(t *testing.T) {
	t.Parallel()

	validate := phases.NewValidate(openStore(t), phases.ValidateConfig{}, nil, nil, nil)
	err := validate.Run(context.Background(), pipeline.Task{URL: "ftp://bistro.fr/menu"})
	require.ErrorContains(t, err, "unsupported scheme")
}
