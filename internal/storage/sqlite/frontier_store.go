// Package sqlite provides a SQLite-backed frontier store for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
)

// FrontierStore implements frontier.Store on SQLite. The pool is pinned to a
// single connection: SQLite allows one writer, and ":memory:" databases are
// per-connection.
type FrontierStore struct {
	db     *sqlx.DB
	clock  frontier.Clock
	logger *zap.Logger
}

var (
	_ frontier.Store     = (*FrontierStore)(nil)
	_ frontier.Inspector = (*FrontierStore)(nil)
)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, clock frontier.Clock, logger *zap.Logger) (*FrontierStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply frontier schema: %w", err)
	}
	if clock == nil {
		clock = frontier.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrontierStore{db: db, clock: clock, logger: logger}, nil
}

// Close closes the database.
func (s *FrontierStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// RegisterDomain upserts the domain. A visit_count of 1 after the upsert can
// only come from the insert branch.
func (s *FrontierStore) RegisterDomain(ctx context.Context, name string) (int64, frontier.Outcome, error) {
	var id, visits int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO domain (domain_name, visit_count) VALUES (?, 1)
		ON CONFLICT(domain_name) DO UPDATE SET visit_count = visit_count + 1
		RETURNING id, visit_count`, name).Scan(&id, &visits)
	if err != nil {
		return 0, 0, fmt.Errorf("register domain %q: %w", name, err)
	}
	if visits == 1 {
		return id, frontier.Created, nil
	}
	return id, frontier.Found, nil
}

// RegisterSource inserts a webpage source unless one exists for the domain.
func (s *FrontierStore) RegisterSource(ctx context.Context, domainID int64, credibility float64) (int64, frontier.Outcome, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO source (domain_id, source_type, credibility_score) VALUES (?, ?, ?)
		ON CONFLICT(domain_id, source_type) DO NOTHING
		RETURNING id`, domainID, frontier.SourceTypeWebpage, credibility).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, frontier.Conflict, nil
	case err != nil:
		return 0, 0, fmt.Errorf("register source for domain %d: %w", domainID, err)
	}
	return id, frontier.Created, nil
}

// LookupSource finds the webpage source of a domain.
func (s *FrontierStore) LookupSource(ctx context.Context, domainID int64) (int64, frontier.Outcome, error) {
	var id int64
	err := s.db.GetContext(ctx, &id,
		`SELECT id FROM source WHERE domain_id = ? AND source_type = ?`, domainID, frontier.SourceTypeWebpage)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, frontier.NotFound, nil
	case err != nil:
		return 0, 0, fmt.Errorf("lookup source for domain %d: %w", domainID, err)
	}
	return id, frontier.Found, nil
}

// RegisterURL inserts the URL or refreshes last_crawled. SQLite has no
// insert-vs-update marker on RETURNING, so the read and write share a
// transaction.
func (s *FrontierStore) RegisterURL(ctx context.Context, fullURL string, sourceID int64) (int64, frontier.Outcome, error) {
	now := s.clock.Now().UnixNano()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin register url: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var id int64
	outcome := frontier.Found
	err = tx.GetContext(ctx, &id, `SELECT id FROM url WHERE full_url = ?`, fullURL)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome = frontier.Created
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO url (full_url, source_id, first_seen, last_crawled) VALUES (?, ?, ?, ?)
			RETURNING id`, fullURL, sourceID, now, now).Scan(&id)
		if err != nil {
			return 0, 0, fmt.Errorf("insert url %q: %w", fullURL, err)
		}
	case err != nil:
		return 0, 0, fmt.Errorf("lookup url %q: %w", fullURL, err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE url SET last_crawled = ? WHERE id = ?`, now, id); err != nil {
			return 0, 0, fmt.Errorf("refresh url %q: %w", fullURL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit register url: %w", err)
	}
	return id, outcome, nil
}

// Enqueue upserts the queue entry; a re-enqueue only overwrites priority.
func (s *FrontierStore) Enqueue(ctx context.Context, urlID int64, priority float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO priority_queue (url_id, priority, queued_at) VALUES (?, ?, ?)
		ON CONFLICT(url_id) DO UPDATE SET priority = excluded.priority`,
		urlID, priority, s.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("enqueue url %d: %w", urlID, err)
	}
	return nil
}

// PeekHighestPriority returns the queue head without removing it.
func (s *FrontierStore) PeekHighestPriority(ctx context.Context) (frontier.Entry, frontier.Outcome, error) {
	var (
		e        frontier.Entry
		queuedAt int64
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT pq.url_id, u.full_url, pq.priority, pq.queued_at
		FROM priority_queue pq
		JOIN url u ON u.id = pq.url_id
		ORDER BY pq.priority DESC, pq.queued_at ASC, pq.url_id ASC
		LIMIT 1`).Scan(&e.URLID, &e.URL, &e.Priority, &queuedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Info("frontier priority queue is empty")
		return frontier.Entry{}, frontier.NotFound, nil
	case err != nil:
		return frontier.Entry{}, 0, fmt.Errorf("peek priority queue: %w", err)
	}
	e.QueuedAt = time.Unix(0, queuedAt).UTC()
	return e, frontier.Found, nil
}

// Reprioritize updates a queued URL's priority in place.
func (s *FrontierStore) Reprioritize(ctx context.Context, fullURL string, priority float64) (frontier.Outcome, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE priority_queue SET priority = ?
		WHERE url_id = (SELECT id FROM url WHERE full_url = ?)`, priority, fullURL)
	if err != nil {
		return 0, fmt.Errorf("reprioritize %q: %w", fullURL, err)
	}
	return s.affected(res, "reprioritize skipped: url not queued", fullURL)
}

// Dequeue removes a URL's queue entry.
func (s *FrontierStore) Dequeue(ctx context.Context, fullURL string) (frontier.Outcome, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM priority_queue
		WHERE url_id = (SELECT id FROM url WHERE full_url = ?)`, fullURL)
	if err != nil {
		return 0, fmt.Errorf("dequeue %q: %w", fullURL, err)
	}
	return s.affected(res, "dequeue skipped: url not queued", fullURL)
}

// QueueDepth counts pending entries.
func (s *FrontierStore) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	if err := s.db.GetContext(ctx, &depth, `SELECT COUNT(*) FROM priority_queue`); err != nil {
		return 0, fmt.Errorf("count priority queue: %w", err)
	}
	return depth, nil
}

// Domain loads a domain row by name.
func (s *FrontierStore) Domain(ctx context.Context, name string) (frontier.Domain, frontier.Outcome, error) {
	var d frontier.Domain
	err := s.db.GetContext(ctx, &d, `SELECT id, domain_name, visit_count FROM domain WHERE domain_name = ?`, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return frontier.Domain{}, frontier.NotFound, nil
	case err != nil:
		return frontier.Domain{}, 0, fmt.Errorf("load domain %q: %w", name, err)
	}
	return d, frontier.Found, nil
}

// URL loads a url row by its full URL.
func (s *FrontierStore) URL(ctx context.Context, fullURL string) (frontier.URL, frontier.Outcome, error) {
	var (
		u                      frontier.URL
		sourceID               sql.NullInt64
		firstSeen, lastCrawled int64
	)
	err := s.db.QueryRowxContext(ctx,
		`SELECT id, full_url, source_id, first_seen, last_crawled FROM url WHERE full_url = ?`, fullURL).
		Scan(&u.ID, &u.FullURL, &sourceID, &firstSeen, &lastCrawled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return frontier.URL{}, frontier.NotFound, nil
	case err != nil:
		return frontier.URL{}, 0, fmt.Errorf("load url %q: %w", fullURL, err)
	}
	u.SourceID = sourceID.Int64
	u.FirstSeen = time.Unix(0, firstSeen).UTC()
	u.LastCrawled = time.Unix(0, lastCrawled).UTC()
	return u, frontier.Found, nil
}

func (s *FrontierStore) affected(res sql.Result, msg, fullURL string) (frontier.Outcome, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		s.logger.Warn(msg, zap.String("url", fullURL))
		return frontier.NotFound, nil
	}
	return frontier.Found, nil
}
