package postgres

import (
	"context"
	"fmt"
)

// Schema creates the four frontier tables. Every statement is idempotent so
// Migrate can run on each deploy.
const Schema = `
CREATE TABLE IF NOT EXISTS domain (
	id          BIGSERIAL PRIMARY KEY,
	domain_name TEXT NOT NULL UNIQUE,
	visit_count BIGINT NOT NULL DEFAULT 1 CHECK (visit_count >= 1)
);

CREATE TABLE IF NOT EXISTS source (
	id                BIGSERIAL PRIMARY KEY,
	domain_id         BIGINT NOT NULL REFERENCES domain(id),
	source_type       TEXT NOT NULL,
	credibility_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	UNIQUE (domain_id, source_type)
);

CREATE TABLE IF NOT EXISTS url (
	id           BIGSERIAL PRIMARY KEY,
	full_url     TEXT NOT NULL UNIQUE,
	source_id    BIGINT REFERENCES source(id),
	first_seen   TIMESTAMPTZ NOT NULL,
	last_crawled TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS priority_queue (
	url_id    BIGINT NOT NULL UNIQUE REFERENCES url(id),
	priority  DOUBLE PRECISION NOT NULL,
	queued_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_priority_queue_order
	ON priority_queue (priority DESC, queued_at ASC, url_id ASC);
`

// Migrate applies Schema. Exec without arguments goes over the simple
// protocol, so the multi-statement script runs in one round trip.
func (s *FrontierStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply frontier schema: %w", err)
	}
	return nil
}
