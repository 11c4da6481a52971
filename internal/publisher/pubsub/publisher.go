// Package pubsub publishes load notices to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/restaurant-pipeline/internal/publisher"
)

// Publisher wraps one topic handle.
type Publisher struct {
	topic *pubsub.Topic
}

var _ publisher.Publisher = (*Publisher)(nil)

// New wraps topic. The caller keeps ownership of the client.
func New(topic *pubsub.Topic) (*Publisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub topic is required")
	}
	return &Publisher{topic: topic}, nil
}

// Publish sends the notice as JSON with run and hash attributes, waiting for
// the server to acknowledge it.
func (p *Publisher) Publish(ctx context.Context, n publisher.Notice) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal notice: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":       n.RunID,
			"content_hash": n.ContentHash,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish notice for %s: %w", n.URL, err)
	}
	return id, nil
}

// Close flushes pending messages and stops the topic's goroutines.
func (p *Publisher) Close() error {
	p.topic.Stop()
	return nil
}
