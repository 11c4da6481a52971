// Package postgres provides the Postgres-backed frontier store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
)

// Config controls the Postgres connection used for one pipeline run.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// conn is the slice of pgxpool.Pool the store needs; pgxmock satisfies it.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// FrontierStore implements frontier.Store on Postgres. All writes are single
// upsert statements, so each call is atomic without an explicit transaction.
type FrontierStore struct {
	pool   conn
	clock  frontier.Clock
	logger *zap.Logger
}

var (
	_ frontier.Store     = (*FrontierStore)(nil)
	_ frontier.Inspector = (*FrontierStore)(nil)
)

// NewFrontierStore connects to Postgres and verifies the connection.
func NewFrontierStore(ctx context.Context, cfg Config, clock frontier.Clock, logger *zap.Logger) (*FrontierStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewFrontierStoreWithPool(pool, clock, logger)
}

// NewFrontierStoreWithPool builds a store over an existing pool (primarily for testing).
func NewFrontierStoreWithPool(pool conn, clock frontier.Clock, logger *zap.Logger) (*FrontierStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if clock == nil {
		clock = frontier.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrontierStore{pool: pool, clock: clock, logger: logger}, nil
}

// Close releases the pool.
func (s *FrontierStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// RegisterDomain upserts the domain; xmax = 0 only for freshly inserted rows.
func (s *FrontierStore) RegisterDomain(ctx context.Context, name string) (int64, frontier.Outcome, error) {
	const query = `
		INSERT INTO domain (domain_name, visit_count)
		VALUES ($1, 1)
		ON CONFLICT (domain_name) DO UPDATE
		SET visit_count = domain.visit_count + 1
		RETURNING id, (xmax = 0) AS inserted`

	var (
		id       int64
		inserted bool
	)
	if err := s.pool.QueryRow(ctx, query, name).Scan(&id, &inserted); err != nil {
		return 0, 0, fmt.Errorf("register domain %q: %w", name, err)
	}
	return id, createdOrFound(inserted), nil
}

// RegisterSource inserts a webpage source unless one exists for the domain.
func (s *FrontierStore) RegisterSource(ctx context.Context, domainID int64, credibility float64) (int64, frontier.Outcome, error) {
	const query = `
		INSERT INTO source (domain_id, source_type, credibility_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain_id, source_type) DO NOTHING
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query, domainID, frontier.SourceTypeWebpage, credibility).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, frontier.Conflict, nil
	case err != nil:
		return 0, 0, fmt.Errorf("register source for domain %d: %w", domainID, err)
	}
	return id, frontier.Created, nil
}

// LookupSource finds the webpage source of a domain.
func (s *FrontierStore) LookupSource(ctx context.Context, domainID int64) (int64, frontier.Outcome, error) {
	const query = `SELECT id FROM source WHERE domain_id = $1 AND source_type = $2`

	var id int64
	err := s.pool.QueryRow(ctx, query, domainID, frontier.SourceTypeWebpage).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, frontier.NotFound, nil
	case err != nil:
		return 0, 0, fmt.Errorf("lookup source for domain %d: %w", domainID, err)
	}
	return id, frontier.Found, nil
}

// RegisterURL inserts the URL or refreshes last_crawled on a re-sighting.
func (s *FrontierStore) RegisterURL(ctx context.Context, fullURL string, sourceID int64) (int64, frontier.Outcome, error) {
	const query = `
		INSERT INTO url (full_url, source_id, first_seen, last_crawled)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (full_url) DO UPDATE
		SET last_crawled = EXCLUDED.last_crawled
		RETURNING id, (xmax = 0) AS inserted`

	var (
		id       int64
		inserted bool
	)
	if err := s.pool.QueryRow(ctx, query, fullURL, sourceID, s.clock.Now()).Scan(&id, &inserted); err != nil {
		return 0, 0, fmt.Errorf("register url %q: %w", fullURL, err)
	}
	return id, createdOrFound(inserted), nil
}

// Enqueue upserts the queue entry; a re-enqueue only overwrites priority.
func (s *FrontierStore) Enqueue(ctx context.Context, urlID int64, priority float64) error {
	const query = `
		INSERT INTO priority_queue (url_id, priority, queued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (url_id) DO UPDATE
		SET priority = EXCLUDED.priority`

	if _, err := s.pool.Exec(ctx, query, urlID, priority, s.clock.Now()); err != nil {
		return fmt.Errorf("enqueue url %d: %w", urlID, err)
	}
	return nil
}

// PeekHighestPriority returns the queue head. Ties go to the entry queued
// first, then to the lower url id.
func (s *FrontierStore) PeekHighestPriority(ctx context.Context) (frontier.Entry, frontier.Outcome, error) {
	const query = `
		SELECT pq.url_id, u.full_url, pq.priority, pq.queued_at
		FROM priority_queue pq
		JOIN url u ON u.id = pq.url_id
		ORDER BY pq.priority DESC, pq.queued_at ASC, pq.url_id ASC
		LIMIT 1`

	var e frontier.Entry
	err := s.pool.QueryRow(ctx, query).Scan(&e.URLID, &e.URL, &e.Priority, &e.QueuedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		s.logger.Info("frontier priority queue is empty")
		return frontier.Entry{}, frontier.NotFound, nil
	case err != nil:
		return frontier.Entry{}, 0, fmt.Errorf("peek priority queue: %w", err)
	}
	return e, frontier.Found, nil
}

// Reprioritize updates a queued URL's priority in place.
func (s *FrontierStore) Reprioritize(ctx context.Context, fullURL string, priority float64) (frontier.Outcome, error) {
	const query = `
		UPDATE priority_queue
		SET priority = $1
		WHERE url_id = (SELECT id FROM url WHERE full_url = $2)`

	tag, err := s.pool.Exec(ctx, query, priority, fullURL)
	if err != nil {
		return 0, fmt.Errorf("reprioritize %q: %w", fullURL, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("reprioritize skipped: url not queued", zap.String("url", fullURL))
		return frontier.NotFound, nil
	}
	return frontier.Found, nil
}

// Dequeue removes a URL's queue entry.
func (s *FrontierStore) Dequeue(ctx context.Context, fullURL string) (frontier.Outcome, error) {
	const query = `
		DELETE FROM priority_queue
		WHERE url_id = (SELECT id FROM url WHERE full_url = $1)`

	tag, err := s.pool.Exec(ctx, query, fullURL)
	if err != nil {
		return 0, fmt.Errorf("dequeue %q: %w", fullURL, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("dequeue skipped: url not queued", zap.String("url", fullURL))
		return frontier.NotFound, nil
	}
	return frontier.Found, nil
}

// QueueDepth counts pending entries.
func (s *FrontierStore) QueueDepth(ctx context.Context) (int, error) {
	var depth int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM priority_queue`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("count priority queue: %w", err)
	}
	return int(depth), nil
}

// Domain loads a domain row by name.
func (s *FrontierStore) Domain(ctx context.Context, name string) (frontier.Domain, frontier.Outcome, error) {
	const query = `SELECT id, domain_name, visit_count FROM domain WHERE domain_name = $1`

	var d frontier.Domain
	err := s.pool.QueryRow(ctx, query, name).Scan(&d.ID, &d.Name, &d.VisitCount)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return frontier.Domain{}, frontier.NotFound, nil
	case err != nil:
		return frontier.Domain{}, 0, fmt.Errorf("load domain %q: %w", name, err)
	}
	return d, frontier.Found, nil
}

// URL loads a url row by its full URL.
func (s *FrontierStore) URL(ctx context.Context, fullURL string) (frontier.URL, frontier.Outcome, error) {
	const query = `
		SELECT id, full_url, COALESCE(source_id, 0), first_seen, last_crawled
		FROM url WHERE full_url = $1`

	var u frontier.URL
	err := s.pool.QueryRow(ctx, query, fullURL).Scan(&u.ID, &u.FullURL, &u.SourceID, &u.FirstSeen, &u.LastCrawled)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return frontier.URL{}, frontier.NotFound, nil
	case err != nil:
		return frontier.URL{}, 0, fmt.Errorf("load url %q: %w", fullURL, err)
	}
	return u, frontier.Found, nil
}

func createdOrFound(inserted bool) frontier.Outcome {
	if inserted {
		return frontier.Created
	}
	return frontier.Found
}
