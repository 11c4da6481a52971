package phases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

// ErrNoCandidates is returned when a restaurant yields no URL to validate.
var ErrNoCandidates = errors.New("no candidate urls")

// Searcher finds web pages about a restaurant, typically through a search
// engine API.
type Searcher interface {
	Search(ctx context.Context, r pipeline.Restaurant) ([]string, error)
}

// Search emits one validate task per candidate URL: the restaurant's own
// website first, then whatever the Searcher returns.
type Search struct {
	validate pipeline.Queue
	searcher Searcher
	ids      pipeline.IDGenerator
	logger   *zap.Logger
}

// NewSearch builds the search phase. searcher may be nil.
func NewSearch(validate pipeline.Queue, searcher Searcher, ids pipeline.IDGenerator, logger *zap.Logger) *Search {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{validate: validate, searcher: searcher, ids: ids, logger: logger.Named("search")}
}

// Run implements pipeline.TaskFunc.
func (s *Search) Run(ctx context.Context, task pipeline.Task) error {
	candidates := make([]string, 0, 4)
	website := strings.TrimSpace(task.Restaurant.Website)
	if website != "" {
		candidates = append(candidates, website)
	}
	if s.searcher != nil {
		found, err := s.searcher.Search(ctx, task.Restaurant)
		if err != nil && len(candidates) == 0 {
			return fmt.Errorf("search %q: %w", task.Restaurant.Name, err)
		}
		if err != nil {
			s.logger.Warn("searcher failed, using website only",
				zap.String("restaurant", task.Restaurant.Name), zap.Error(err))
		}
		candidates = append(candidates, found...)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("search %q: %w", task.Restaurant.Name, ErrNoCandidates)
	}

	seen := make(map[string]struct{}, len(candidates))
	for i, u := range candidates {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		id, err := s.ids.NewID()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		next := pipeline.Task{
			ID:            id,
			RunID:         task.RunID,
			Restaurant:    task.Restaurant,
			InitialSearch: task.InitialSearch,
			URL:           u,
		}
		// The restaurant's own site outranks search hits.
		if i == 0 && website != "" {
			next.PriorityHint = 1
		}
		if err := s.validate.Put(next); err != nil {
			return fmt.Errorf("queue validate task: %w", err)
		}
	}
	s.logger.Debug("candidates queued",
		zap.String("restaurant", task.Restaurant.Name), zap.Int("count", len(seen)))
	return nil
}
