package phases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/restaurant-pipeline/internal/fetcher/colly"
	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	"github.com/JakeFAU/restaurant-pipeline/internal/progress"
)

// Fetcher downloads one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (pipeline.Document, error)
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) (time.Duration, error)
}

// ExtractDeps wires the extract phase.
type ExtractDeps struct {
	Frontier  frontier.Store
	Fetcher   Fetcher
	Limiter   Limiter
	Transform pipeline.Queue
	Catalog   *Catalog
	IDs       pipeline.IDGenerator
	Emitter   progress.Emitter
	Clock     pipeline.Clock
	Logger    *zap.Logger
}

// Extract consumes the frontier head: it fetches the page, removes the
// entry and hands the document to transform.
type Extract struct {
	d      ExtractDeps
	logger *zap.Logger
}

// NewExtract builds the extract phase. Limiter, Catalog, Emitter and Clock
// are optional.
func NewExtract(d ExtractDeps) (*Extract, error) {
	switch {
	case d.Frontier == nil:
		return nil, errors.New("extract: frontier is required")
	case d.Fetcher == nil:
		return nil, errors.New("extract: fetcher is required")
	case d.Transform == nil:
		return nil, errors.New("extract: transform queue is required")
	case d.IDs == nil:
		return nil, errors.New("extract: id generator is required")
	}
	if d.Emitter == nil {
		d.Emitter = progress.Nop
	}
	if d.Clock == nil {
		d.Clock = frontier.SystemClock
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Extract{d: d, logger: d.Logger.Named("extract")}, nil
}

// Run implements pipeline.ExtractFunc.
func (e *Extract) Run(ctx context.Context) (string, error) {
	head, outcome, err := e.d.Frontier.PeekHighestPriority(ctx)
	if err != nil {
		return "", err
	}
	if outcome == frontier.NotFound {
		return "", nil
	}

	if e.d.Limiter != nil {
		waited, err := e.d.Limiter.Wait(ctx, head.URL)
		if err != nil {
			return head.URL, fmt.Errorf("rate limit %s: %w", head.URL, err)
		}
		if waited > 0 {
			e.logger.Debug("rate limited", zap.String("url", head.URL), zap.Duration("waited", waited))
		}
	}

	start := e.d.Clock.Now()
	doc, err := e.d.Fetcher.Fetch(ctx, head.URL)
	if ctx.Err() == nil {
		e.fetchDone(ctx, head.URL, doc, err, e.d.Clock.Now().Sub(start))
	}
	if err != nil {
		// The entry stays queued; the orchestrator drops a head that does not move.
		return head.URL, err
	}
	if _, err := e.d.Frontier.Dequeue(ctx, head.URL); err != nil {
		return head.URL, err
	}

	id, err := e.d.IDs.NewID()
	if err != nil {
		return head.URL, fmt.Errorf("task id: %w", err)
	}
	task := pipeline.Task{
		ID:       id,
		RunID:    pipeline.RunIDFromContext(ctx),
		URL:      head.URL,
		Document: &doc,
	}
	if e.d.Catalog != nil {
		if r, ok := e.d.Catalog.Lookup(head.URL); ok {
			task.Restaurant = r
		}
	}
	if err := e.d.Transform.Put(task); err != nil {
		return head.URL, fmt.Errorf("queue transform task: %w", err)
	}
	return head.URL, nil
}

func (e *Extract) fetchDone(ctx context.Context, rawURL string, doc pipeline.Document, err error, dur time.Duration) {
	host, _ := frontier.ExtractHost(rawURL)
	evt := progress.Event{
		RunID: pipeline.RunIDFromContext(ctx),
		TS:    e.d.Clock.Now(),
		Stage: progress.StageFetchDone,
		Phase: string(pipeline.PhaseExtract),
		Site:  host,
		URL:   rawURL,
		Dur:   dur,
	}
	var se *collyfetcher.StatusError
	switch {
	case err == nil:
		evt.StatusClass = progress.ClassifyStatus(doc.StatusCode)
		evt.Bytes = int64(len(doc.Body))
	case errors.As(err, &se):
		evt.StatusClass = progress.ClassifyStatus(se.Code)
		evt.Note = err.Error()
	default:
		evt.StatusClass = progress.StatusOther
		evt.Note = err.Error()
	}
	if evt.Site == "" {
		evt.Site = "unknown"
	}
	e.d.Emitter.Emit(evt)
}
