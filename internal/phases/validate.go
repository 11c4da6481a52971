package phases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

// HostPolicy decides whether a host may enter the frontier.
type HostPolicy interface {
	Allow(host string) bool
}

// Validate normalizes a candidate URL and registers its domain, source and
// URL before queueing it on the frontier with a computed priority.
type Validate struct {
	store       frontier.Store
	scorer      *frontier.Scorer
	policy      HostPolicy
	catalog     *Catalog
	credibility float64
	logger      *zap.Logger
}

// ValidateConfig carries the validate phase's tunables.
type ValidateConfig struct {
	// Credibility is recorded on newly registered webpage sources.
	Credibility float64
	Weights     frontier.ScoreWeights
}

// NewValidate builds the validate phase. policy and catalog may be nil.
func NewValidate(store frontier.Store, cfg ValidateConfig, policy HostPolicy, catalog *Catalog, logger *zap.Logger) *Validate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validate{
		store:       store,
		scorer:      frontier.NewScorer(cfg.Weights),
		policy:      policy,
		catalog:     catalog,
		credibility: cfg.Credibility,
		logger:      logger.Named("validate"),
	}
}

// Run implements pipeline.TaskFunc.
func (v *Validate) Run(ctx context.Context, task pipeline.Task) error {
	normalized, err := frontier.NormalizeURL(task.URL)
	if err != nil {
		return fmt.Errorf("validate %q: %w", task.URL, err)
	}
	host, err := frontier.ExtractHost(normalized)
	if err != nil {
		return fmt.Errorf("validate %q: %w", task.URL, err)
	}
	if v.policy != nil && !v.policy.Allow(host) {
		v.logger.Info("host blocked, not queued", zap.String("host", host), zap.String("url", normalized))
		return nil
	}

	domainID, _, err := v.store.RegisterDomain(ctx, host)
	if err != nil {
		return err
	}
	sourceID, outcome, err := v.store.RegisterSource(ctx, domainID, v.credibility)
	if err != nil {
		return err
	}
	if outcome == frontier.Conflict {
		if sourceID, outcome, err = v.store.LookupSource(ctx, domainID); err != nil {
			return err
		}
		if outcome == frontier.NotFound {
			return fmt.Errorf("validate %q: source for domain %d vanished", normalized, domainID)
		}
	}
	urlID, urlOutcome, err := v.store.RegisterURL(ctx, normalized, sourceID)
	if err != nil {
		return err
	}

	priority := v.scorer.Score(frontier.Signals{
		InitialSearch: task.InitialSearch,
		Credibility:   v.credibility,
		DomainVisits:  v.domainVisits(ctx, host),
		Hint:          task.PriorityHint,
	})
	if err := v.store.Enqueue(ctx, urlID, priority); err != nil {
		return err
	}
	if v.catalog != nil {
		v.catalog.Remember(normalized, task.Restaurant)
	}
	v.logger.Debug("url queued",
		zap.String("url", normalized),
		zap.Stringer("url_outcome", urlOutcome),
		zap.Float64("priority", priority),
	)
	return nil
}

// domainVisits reads the visit count when the store can report it.
func (v *Validate) domainVisits(ctx context.Context, host string) int64 {
	insp, ok := v.store.(frontier.Inspector)
	if !ok {
		return 1
	}
	d, outcome, err := insp.Domain(ctx, host)
	if err != nil || outcome != frontier.Found {
		return 1
	}
	return d.VisitCount
}
