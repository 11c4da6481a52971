// Package memory records notices in process for tests and dry runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/restaurant-pipeline/internal/publisher"
)

// Publisher stores published notices for inspection.
type Publisher struct {
	mu      sync.RWMutex
	notices []publisher.Notice
	closed  bool
}

var _ publisher.Publisher = (*Publisher)(nil)

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the notice and returns a sequential id.
func (p *Publisher) Publish(_ context.Context, n publisher.Notice) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", errors.New("publisher closed")
	}
	p.notices = append(p.notices, n)
	return fmt.Sprintf("memory-%d", len(p.notices)), nil
}

// Notices returns a copy of everything published so far.
func (p *Publisher) Notices() []publisher.Notice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]publisher.Notice(nil), p.notices...)
}

// Close rejects later publishes.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
