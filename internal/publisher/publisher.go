// Package publisher announces loaded records to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// Notice announces one record written by the load phase.
type Notice struct {
	RunID       string    `json:"run_id"`
	Restaurant  string    `json:"restaurant"`
	URL         string    `json:"url"`
	ObjectURI   string    `json:"object_uri"`
	ContentHash string    `json:"content_hash"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Publisher sends notices and returns a backend message id.
type Publisher interface {
	Publish(ctx context.Context, n Notice) (string, error)
	Close() error
}
