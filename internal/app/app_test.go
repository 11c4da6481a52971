package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/restaurant-pipeline/internal/app"
	"github.com/JakeFAU/restaurant-pipeline/internal/config"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	"github.com/JakeFAU/restaurant-pipeline/internal/publisher"
)

// MockPublisher mocks the publisher.Publisher interface.
type MockPublisher struct {
	mock.Mock
}

// Publish satisfies the publisher.Publisher interface for the mock.
func (m *MockPublisher) Publish(ctx context.Context, n publisher.Notice) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

// Close satisfies the publisher.Publisher interface for the mock.
func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Database.SQLitePath = filepath.Join(dir, "db", "frontier.db")
	cfg.Storage.LocalDir = filepath.Join(dir, "records")
	cfg.Bootstrap.Source = filepath.Join(dir, "restaurants.json")
	cfg.Bootstrap.Progress = filepath.Join(dir, "progress.json")
	cfg.Metrics.Textfile = filepath.Join(dir, "pipeline.prom")
	cfg.Pipeline.GetTimeout = 50 * time.Millisecond
	cfg.Fetch.RespectRobots = false
	cfg.Fetch.Timeout = 2 * time.Second
	cfg.RateLimit.RPS = 0
	cfg.Progress.MaxBatchWait = 10 * time.Millisecond
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Le Bistro</title></head><body>Lunch menu</body></html>`))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Bootstrap.Source,
		[]byte(`[{"name": "Le Bistro", "website": "`+srv.URL+`/"}]`), 0o600))

	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(n publisher.Notice) bool {
		return n.Restaurant == "Le Bistro"
	})).Return("msg-1", nil).Once()
	pub.On("Close").Return(nil).Once()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, nil, app.WithPublisher(pub))
	require.NoError(t, err)

	orch, err := a.NewOrchestrator(nil)
	require.NoError(t, err)
	report, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Seeded)
	assert.Zero(t, report.Final.FrontierDepth)

	load, ok := report.Stats(pipeline.PhaseLoad)
	require.True(t, ok)
	assert.Equal(t, 1, load.Attempted)
	assert.Zero(t, load.Failed)

	require.NoError(t, a.Close(ctx))
	require.NoError(t, a.Close(ctx))
	pub.AssertExpectations(t)

	records, err := filepath.Glob(filepath.Join(cfg.Storage.LocalDir, cfg.Storage.Prefix, report.RunID, "*.json"))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	metrics, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `pipeline_runs_total{result="done"} 1`)
}

func TestNewReleasesStoreOnFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = "s3"

	_, err := app.New(context.Background(), cfg, nil)
	require.EqualError(t, err, `unknown storage backend "s3"`)
}

func TestMigrateIsNoopForSQLite(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.StorageMemory
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.NoError(t, a.Migrate(context.Background()))
	depth, err := a.Store().QueueDepth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)
}
