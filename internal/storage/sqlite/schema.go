package sqlite

// schema mirrors the Postgres frontier tables. Timestamps are unix
// nanoseconds so ORDER BY queued_at is exact regardless of text formatting.
const schema = `
CREATE TABLE IF NOT EXISTS domain (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	domain_name TEXT NOT NULL UNIQUE,
	visit_count INTEGER NOT NULL DEFAULT 1 CHECK (visit_count >= 1)
);

CREATE TABLE IF NOT EXISTS source (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	domain_id         INTEGER NOT NULL REFERENCES domain(id),
	source_type       TEXT NOT NULL,
	credibility_score REAL NOT NULL DEFAULT 0,
	UNIQUE (domain_id, source_type)
);

CREATE TABLE IF NOT EXISTS url (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	full_url     TEXT NOT NULL UNIQUE,
	source_id    INTEGER REFERENCES source(id),
	first_seen   INTEGER NOT NULL,
	last_crawled INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS priority_queue (
	url_id    INTEGER NOT NULL UNIQUE REFERENCES url(id),
	priority  REAL NOT NULL,
	queued_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_priority_queue_order
	ON priority_queue (priority DESC, queued_at ASC, url_id ASC);
`
