package phases

import (
	"sync"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

// Catalog remembers which restaurant each validated URL belongs to, so
// extract can attach it to the fetched page. URLs queued by an earlier run
// are not in the catalog and travel without restaurant fields.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]pipeline.Restaurant
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]pipeline.Restaurant)}
}

// Remember associates url with r.
func (c *Catalog) Remember(url string, r pipeline.Restaurant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = r
}

// Lookup returns the restaurant registered for url.
func (c *Catalog) Lookup(url string) (pipeline.Restaurant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[url]
	return r, ok
}

// Len reports how many URLs are known.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
