// Package app builds the long-lived services a pipeline run needs from
// configuration and tears them down once the run is over.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/bootstrap"
	"github.com/JakeFAU/restaurant-pipeline/internal/clock/system"
	"github.com/JakeFAU/restaurant-pipeline/internal/config"
	collyfetcher "github.com/JakeFAU/restaurant-pipeline/internal/fetcher/colly"
	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
	"github.com/JakeFAU/restaurant-pipeline/internal/hash/sha256"
	iduuid "github.com/JakeFAU/restaurant-pipeline/internal/id/uuid"
	"github.com/JakeFAU/restaurant-pipeline/internal/phases"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	"github.com/JakeFAU/restaurant-pipeline/internal/policy/ratelimit"
	"github.com/JakeFAU/restaurant-pipeline/internal/policy/simple"
	"github.com/JakeFAU/restaurant-pipeline/internal/progress"
	"github.com/JakeFAU/restaurant-pipeline/internal/progress/sinks"
	"github.com/JakeFAU/restaurant-pipeline/internal/publisher"
	pubmem "github.com/JakeFAU/restaurant-pipeline/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/restaurant-pipeline/internal/publisher/pubsub"
	queuemem "github.com/JakeFAU/restaurant-pipeline/internal/queue/memory"
	"github.com/JakeFAU/restaurant-pipeline/internal/storage"
	"github.com/JakeFAU/restaurant-pipeline/internal/storage/gcs"
	"github.com/JakeFAU/restaurant-pipeline/internal/storage/local"
	blobmem "github.com/JakeFAU/restaurant-pipeline/internal/storage/memory"
	"github.com/JakeFAU/restaurant-pipeline/internal/storage/postgres"
	"github.com/JakeFAU/restaurant-pipeline/internal/storage/sqlite"
)

// App holds the services shared by one process: the frontier store, the
// record sinks and the progress hub. It is a plain container; Close releases
// everything exactly once.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    system.Clock
	store    frontier.Store
	blobs    storage.BlobStore
	pub      publisher.Publisher
	hub      *progress.Hub
	registry *prometheus.Registry

	// closers run in reverse order of acquisition.
	closers   []func(context.Context) error
	closeOnce sync.Once
	closeErr  error
}

// Option customizes New.
type Option func(*App)

// WithBlobStore replaces the configured record store.
func WithBlobStore(blobs storage.BlobStore) Option {
	return func(a *App) { a.blobs = blobs }
}

// WithPublisher replaces the configured notice publisher.
func WithPublisher(pub publisher.Publisher) Option {
	return func(a *App) { a.pub = pub }
}

// New connects the frontier store and builds the record sinks. On failure
// anything already opened is released.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.openStore(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if err := a.openBlobs(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if err := a.openPublisher(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if err := a.openProgress(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("database", cfg.Database.Driver),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("publisher", cfg.Publisher.Backend),
	)
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the frontier store.
func (a *App) Store() frontier.Store { return a.store }

// Registry returns the private Prometheus registry.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Migrate applies the frontier schema. SQLite applies it on open.
func (a *App) Migrate(ctx context.Context) error {
	m, ok := a.store.(interface{ Migrate(context.Context) error })
	if !ok {
		a.logger.Info("schema applied on open", zap.String("database", a.cfg.Database.Driver))
		return nil
	}
	return m.Migrate(ctx)
}

// NewOrchestrator wires fresh queues and phases for one run. hooks may be nil.
func (a *App) NewOrchestrator(hooks pipeline.Hooks) (*pipeline.Orchestrator, error) {
	ids := iduuid.New()
	queues := pipeline.Queues{
		Search:    queuemem.NewQueue(),
		Validate:  queuemem.NewQueue(),
		Transform: queuemem.NewQueue(),
		Load:      queuemem.NewQueue(),
	}
	catalog := phases.NewCatalog()

	extract, err := phases.NewExtract(phases.ExtractDeps{
		Frontier: a.store,
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:     a.cfg.Fetch.UserAgent,
			RespectRobots: a.cfg.Fetch.RespectRobots,
			Timeout:       a.cfg.Fetch.Timeout,
			MaxBodySize:   a.cfg.Fetch.MaxBodyBytes,
		}, a.clock),
		Limiter:   ratelimit.New(ratelimit.Config{RPS: a.cfg.RateLimit.RPS, Burst: a.cfg.RateLimit.Burst}, a.logger),
		Transform: queues.Transform,
		Catalog:   catalog,
		IDs:       ids,
		Emitter:   a.hub,
		Clock:     a.clock,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}
	validate := phases.NewValidate(a.store, phases.ValidateConfig{
		Credibility: a.cfg.Scoring.Credibility,
		Weights:     a.cfg.Scoring.Weights,
	}, simple.New(a.cfg.Policy.BlockedHosts), catalog, a.logger)
	fields := phases.NewFieldExtractor(a.cfg.Extract.Selectors, a.cfg.Extract.Keywords)

	return pipeline.New(pipeline.Options{
		Config: pipeline.Config{
			BatchSize:  a.cfg.Pipeline.BatchSize,
			GetTimeout: a.cfg.Pipeline.GetTimeout,
			MaxExtract: a.cfg.Pipeline.MaxExtract,
		},
		Queues: queues,
		Phases: pipeline.PhaseFuncs{
			Search:    phases.NewSearch(queues.Validate, nil, ids, a.logger).Run,
			Validate:  validate.Run,
			Extract:   extract.Run,
			Transform: phases.NewTransform(queues.Load, sha256.New(), fields, ids, a.logger).Run,
			Load:      phases.NewLoad(a.blobs, a.cfg.Storage.Prefix, a.pub, a.clock, a.logger).Run,
		},
		Frontier: a.store,
		Batches: &bootstrap.Source{
			SourcePath:   a.cfg.Bootstrap.Source,
			ProgressPath: a.cfg.Bootstrap.Progress,
			Clock:        a.clock,
		},
		Hooks:   hooks,
		Emitter: a.hub,
		Clock:   a.clock,
		IDs:     ids,
		Logger:  a.logger,
	})
}

// Close flushes progress, closes the publisher and releases the store. Only
// the first call does work; later calls return the same result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
		if a.closeErr != nil {
			a.logger.Warn("error closing application services", zap.Error(a.closeErr))
		}
	})
	return a.closeErr
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) openStore(ctx context.Context) error {
	db := a.cfg.Database
	switch db.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewFrontierStore(ctx, postgres.Config{
			DSN:             db.DSN,
			MaxConns:        db.MaxConns,
			MaxConnLifetime: db.MaxConnLifetime,
		}, a.clock, a.logger.Named("frontier"))
		if err != nil {
			return err
		}
		a.store = store
		a.onClose(func(context.Context) error { return store.Close() })
		if db.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(db.SQLitePath), 0o750); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
		store, err := sqlite.Open(ctx, db.SQLitePath, a.clock, a.logger.Named("frontier"))
		if err != nil {
			return err
		}
		a.store = store
		a.onClose(func(context.Context) error { return store.Close() })
	default:
		return fmt.Errorf("unknown database driver %q", db.Driver)
	}
	return nil
}

func (a *App) openBlobs(ctx context.Context) error {
	if a.blobs != nil {
		return nil
	}
	switch a.cfg.Storage.Backend {
	case config.StorageLocal:
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		a.blobs = blobs
	case config.StorageGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose(func(context.Context) error { return client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs storage: %w", err)
		}
		a.blobs = blobs
	case config.StorageMemory:
		a.blobs = blobmem.NewBlobStore()
	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	if a.pub != nil {
		a.onClose(func(context.Context) error { return a.pub.Close() })
		return nil
	}
	switch a.cfg.Publisher.Backend {
	case config.PublisherNone, "":
		return nil
	case config.PublisherMemory:
		a.pub = pubmem.New()
	case config.PublisherPubSub:
		client, err := pubsub.NewClient(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		a.onClose(func(context.Context) error { return client.Close() })
		pub, err := pubsubpublisher.New(client.Topic(a.cfg.Publisher.TopicName))
		if err != nil {
			return err
		}
		a.pub = pub
	default:
		return fmt.Errorf("unknown publisher backend %q", a.cfg.Publisher.Backend)
	}
	a.onClose(func(context.Context) error { return a.pub.Close() })
	return nil
}

func (a *App) openProgress() error {
	a.registry = prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(a.registry, a.cfg.Metrics.Textfile)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	p := a.cfg.Progress
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     p.BufferSize,
		MaxBatchEvents: p.MaxBatchEvents,
		MaxBatchWait:   p.MaxBatchWait,
		SinkTimeout:    p.SinkTimeout,
		Logger:         a.logger.Named("progress"),
	}, sinks.NewLogSink(a.logger.Named("progress")), promSink)
	a.onClose(a.hub.Close)
	return nil
}
