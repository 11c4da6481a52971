// Package frontier defines the crawl frontier: the durable registry of known
// domains, sources and URLs plus the priority queue of URLs awaiting
// extraction. Storage backends live under internal/storage.
package frontier

import (
	"context"
	"time"
)

// SourceTypeWebpage is the only source type the pipeline registers.
const SourceTypeWebpage = "webpage"

// Outcome tags the result of a frontier operation so callers can tell a
// fresh insert from a re-sighting, a conflict or a missing row without
// parsing log output.
type Outcome int

// Frontier operation outcomes.
const (
	Created Outcome = iota + 1
	Found
	NotFound
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Domain models one row of the domain table.
type Domain struct {
	ID         int64  `db:"id"`
	Name       string `db:"domain_name"`
	VisitCount int64  `db:"visit_count"`
}

// Source models one row of the source table.
type Source struct {
	ID               int64   `db:"id"`
	DomainID         int64   `db:"domain_id"`
	SourceType       string  `db:"source_type"`
	CredibilityScore float64 `db:"credibility_score"`
}

// URL models one row of the url table.
type URL struct {
	ID          int64     `db:"id"`
	FullURL     string    `db:"full_url"`
	SourceID    int64     `db:"source_id"`
	FirstSeen   time.Time `db:"first_seen"`
	LastCrawled time.Time `db:"last_crawled"`
}

// Entry is a priority queue entry joined with its URL.
type Entry struct {
	URLID    int64     `db:"url_id"`
	URL      string    `db:"full_url"`
	Priority float64   `db:"priority"`
	QueuedAt time.Time `db:"queued_at"`
}

// Store is the single owner of the four frontier tables. Not-found and
// conflict conditions are reported through Outcome and never as errors; an
// error always means the storage itself failed.
type Store interface {
	// RegisterDomain returns the domain's id, inserting it with visit_count=1
	// (Created) or incrementing visit_count on an existing row (Found).
	RegisterDomain(ctx context.Context, name string) (int64, Outcome, error)
	// RegisterSource inserts a webpage source for the domain. When one already
	// exists it returns id 0 and Conflict.
	RegisterSource(ctx context.Context, domainID int64, credibility float64) (int64, Outcome, error)
	// LookupSource returns the webpage source id for a domain, or NotFound.
	LookupSource(ctx context.Context, domainID int64) (int64, Outcome, error)
	// RegisterURL inserts the URL (Created) or refreshes last_crawled (Found).
	RegisterURL(ctx context.Context, fullURL string, sourceID int64) (int64, Outcome, error)
	// Enqueue upserts a priority queue entry, overwriting priority on conflict.
	Enqueue(ctx context.Context, urlID int64, priority float64) error
	// PeekHighestPriority returns the head of the queue without removing it.
	PeekHighestPriority(ctx context.Context) (Entry, Outcome, error)
	// Reprioritize updates the queued priority of a URL, or reports NotFound.
	Reprioritize(ctx context.Context, fullURL string, priority float64) (Outcome, error)
	// Dequeue removes the queue entry of a URL, or reports NotFound.
	Dequeue(ctx context.Context, fullURL string) (Outcome, error)
	// QueueDepth counts pending queue entries.
	QueueDepth(ctx context.Context) (int, error)
	// Close releases the underlying connection.
	Close() error
}

// Clock returns the current time; stores stamp first_seen, last_crawled and
// queued_at with it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the default wall clock used when a store is built without one.
var SystemClock Clock = systemClock{}

// Inspector is implemented by stores that can load individual rows. The
// pipeline never needs it; the CLI and tests do.
type Inspector interface {
	Domain(ctx context.Context, name string) (Domain, Outcome, error)
	URL(ctx context.Context, fullURL string) (URL, Outcome, error)
}
