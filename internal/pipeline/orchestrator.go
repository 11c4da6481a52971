package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
	iduuid "github.com/JakeFAU/restaurant-pipeline/internal/id/uuid"
	"github.com/JakeFAU/restaurant-pipeline/internal/progress"
)

// State is a step of the run state machine.
type State string

// Run states in the order a run visits them.
const (
	StateIdle         State = "IDLE"
	StateSeeded       State = "SEEDED"
	StateSearching    State = "SEARCHING"
	StateValidating   State = "VALIDATING"
	StateExtracting   State = "EXTRACTING"
	StateTransforming State = "TRANSFORMING"
	StateLoading      State = "LOADING"
	StateDone         State = "DONE"
)

const (
	defaultBatchSize  = 20
	defaultGetTimeout = time.Second
)

// Config tunes one orchestrator.
type Config struct {
	// BatchSize is how many restaurants are seeded per run.
	BatchSize int
	// GetTimeout bounds each queue wait; an expired wait ends the drain.
	GetTimeout time.Duration
	// MaxExtract caps extract calls per run. Zero means no cap.
	MaxExtract int
}

// Queues are the four in-memory phase queues. Extraction has no queue of its
// own; it drains the frontier.
type Queues struct {
	Search    Queue
	Validate  Queue
	Transform Queue
	Load      Queue
}

// PhaseFuncs are the five phase implementations.
type PhaseFuncs struct {
	Search    TaskFunc
	Validate  TaskFunc
	Extract   ExtractFunc
	Transform TaskFunc
	Load      TaskFunc
}

// Options wires an Orchestrator. Queues, Phases, Frontier and Batches are
// required; the rest default.
type Options struct {
	Config   Config
	Queues   Queues
	Phases   PhaseFuncs
	Frontier Frontier
	Batches  BatchSource
	Hooks    Hooks
	Emitter  progress.Emitter
	Clock    Clock
	IDs      IDGenerator
	Logger   *zap.Logger
}

// Orchestrator runs the phases of one batch strictly in sequence, draining
// each before the next starts.
type Orchestrator struct {
	cfg      Config
	queues   Queues
	phases   PhaseFuncs
	frontier Frontier
	batches  BatchSource
	hooks    Hooks
	emitter  progress.Emitter
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	runID string
}

// New validates opts and builds an idle orchestrator.
func New(opts Options) (*Orchestrator, error) {
	q := opts.Queues
	if q.Search == nil || q.Validate == nil || q.Transform == nil || q.Load == nil {
		return nil, errors.New("all four phase queues are required")
	}
	p := opts.Phases
	if p.Search == nil || p.Validate == nil || p.Extract == nil || p.Transform == nil || p.Load == nil {
		return nil, errors.New("all five phase functions are required")
	}
	if opts.Frontier == nil {
		return nil, errors.New("frontier is required")
	}
	if opts.Batches == nil {
		return nil, errors.New("batch source is required")
	}
	cfg := opts.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.GetTimeout <= 0 {
		cfg.GetTimeout = defaultGetTimeout
	}
	if cfg.MaxExtract < 0 {
		return nil, fmt.Errorf("max extract must be >= 0, got %d", cfg.MaxExtract)
	}
	o := &Orchestrator{
		cfg:      cfg,
		queues:   q,
		phases:   p,
		frontier: opts.Frontier,
		batches:  opts.Batches,
		hooks:    opts.Hooks,
		emitter:  opts.Emitter,
		clock:    opts.Clock,
		ids:      opts.IDs,
		logger:   opts.Logger,
		state:    StateIdle,
	}
	if o.emitter == nil {
		o.emitter = progress.Nop
	}
	if o.clock == nil {
		o.clock = systemClock{}
	}
	if o.ids == nil {
		o.ids = iduuid.New()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o, nil
}

// State reports where the run currently is.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run executes one full batch: seed, then search, validate, extract,
// transform and load. Task failures are logged and counted; only storage
// failures, hook refusals and cancellation end the run early. The returned
// report is populated as far as the run got.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	runID, err := o.ids.NewID()
	if err != nil {
		return RunReport{}, fmt.Errorf("generate run id: %w", err)
	}
	o.mu.Lock()
	o.runID = runID
	o.mu.Unlock()

	ctx = WithRunID(ctx, runID)
	report := RunReport{RunID: runID, StartedAt: o.clock.Now()}
	logger := o.logger.With(zap.String("run_id", runID))
	o.emit(progress.Event{Stage: progress.StageRunStart})

	err = o.run(ctx, logger, &report)
	report.Finished = o.clock.Now()
	if err != nil {
		o.emit(progress.Event{Stage: progress.StageRunAborted, Note: err.Error(), Dur: report.Finished.Sub(report.StartedAt)})
		logger.Error("pipeline run stopped", zap.String("state", string(o.State())), zap.Error(err))
		return report, err
	}
	o.emit(progress.Event{Stage: progress.StageRunDone, Dur: report.Finished.Sub(report.StartedAt)})
	logger.Info("pipeline run complete",
		zap.Int("seeded", report.Seeded),
		zap.Int("frontier_depth", report.Final.FrontierDepth),
		zap.Duration("elapsed", report.Finished.Sub(report.StartedAt)),
	)
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, report *RunReport) error {
	if err := o.transition(ctx, StateSeeded); err != nil {
		return err
	}
	seeded, err := o.seed(ctx)
	if err != nil {
		return err
	}
	report.Seeded = seeded
	logger.Info("batch seeded", zap.Int("restaurants", seeded))
	if report.Final, err = o.snapshot(ctx, logger, "seed"); err != nil {
		return err
	}

	steps := []struct {
		state State
		phase Phase
		drain func(context.Context, *zap.Logger) (PhaseStats, error)
	}{
		{StateSearching, PhaseSearch, o.taskDrain(PhaseSearch, o.queues.Search, o.phases.Search)},
		{StateValidating, PhaseValidate, o.taskDrain(PhaseValidate, o.queues.Validate, o.phases.Validate)},
		{StateExtracting, PhaseExtract, o.drainExtract},
		{StateTransforming, PhaseTransform, o.taskDrain(PhaseTransform, o.queues.Transform, o.phases.Transform)},
		{StateLoading, PhaseLoad, o.taskDrain(PhaseLoad, o.queues.Load, o.phases.Load)},
	}
	for _, step := range steps {
		if err := o.transition(ctx, step.state); err != nil {
			return err
		}
		phaseLogger := logger.With(zap.String("phase", string(step.phase)))
		stats, err := step.drain(ctx, phaseLogger)
		report.Phases = append(report.Phases, stats)
		if err != nil {
			return err
		}
		if report.Final, err = o.snapshot(ctx, logger, string(step.phase)); err != nil {
			return err
		}
	}
	return o.transition(ctx, StateDone)
}

// transition consults the hook, then moves to next. Reaching DONE is not
// gated.
func (o *Orchestrator) transition(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before %s: %w", next, err)
	}
	if o.hooks != nil && next != StateDone {
		if err := o.hooks.BeforeTransition(ctx, next); err != nil {
			if errors.Is(err, ErrRunAborted) {
				return err
			}
			return fmt.Errorf("%w before %s: %w", ErrRunAborted, next, err)
		}
	}
	o.mu.Lock()
	o.state = next
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) seed(ctx context.Context) (int, error) {
	batch, err := o.batches.GetBatch(ctx, o.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load seed batch: %w", err)
	}
	for _, r := range batch {
		id, err := o.ids.NewID()
		if err != nil {
			return 0, fmt.Errorf("generate task id: %w", err)
		}
		task := Task{ID: id, RunID: o.currentRunID(), Restaurant: r, InitialSearch: true}
		if err := o.queues.Search.Put(task); err != nil {
			return 0, fmt.Errorf("seed search queue: %w", err)
		}
	}
	return len(batch), nil
}

func (o *Orchestrator) taskDrain(phase Phase, q Queue, fn TaskFunc) func(context.Context, *zap.Logger) (PhaseStats, error) {
	return func(ctx context.Context, logger *zap.Logger) (PhaseStats, error) {
		return o.drain(ctx, logger, phase, q, fn)
	}
}

// drain processes q until a bounded wait comes back empty.
func (o *Orchestrator) drain(ctx context.Context, logger *zap.Logger, phase Phase, q Queue, fn TaskFunc) (PhaseStats, error) {
	stats := PhaseStats{Phase: phase}
	if q.IsEmpty() {
		stats.Skipped = true
		logger.Info("phase queue empty, skipping")
		o.emit(progress.Event{Stage: progress.StagePhaseSkip, Phase: string(phase)})
		return stats, nil
	}

	start := o.clock.Now()
	logger.Info("phase started", zap.Int("queued", q.Size()))
	o.emit(progress.Event{Stage: progress.StagePhaseStart, Phase: string(phase)})
	for {
		task, err := q.Get(ctx, o.cfg.GetTimeout)
		if errors.Is(err, ErrQueueEmpty) || errors.Is(err, ErrQueueClosed) {
			break
		}
		if err != nil {
			stats.Duration = o.clock.Now().Sub(start)
			return stats, fmt.Errorf("%s phase: %w", phase, err)
		}
		err = o.invoke(phase, func() error { return fn(ctx, task) })
		q.TaskDone()
		stats.Attempted++
		if err != nil {
			stats.Failed++
			o.taskFailed(logger, phase, task.URL, err)
		}
	}
	stats.Duration = o.clock.Now().Sub(start)
	o.phaseDone(logger, stats)
	return stats, nil
}

// drainExtract calls the extract phase until the frontier is empty. Before
// each call it peeks the head; if the call leaves the depth where it was, the
// head is dequeued here so a failing URL cannot be retried forever.
func (o *Orchestrator) drainExtract(ctx context.Context, logger *zap.Logger) (PhaseStats, error) {
	stats := PhaseStats{Phase: PhaseExtract}
	depth, err := o.frontier.QueueDepth(ctx)
	if err != nil {
		return stats, fmt.Errorf("extract phase: %w", err)
	}
	if depth == 0 {
		stats.Skipped = true
		logger.Info("frontier empty, skipping")
		o.emit(progress.Event{Stage: progress.StagePhaseSkip, Phase: string(PhaseExtract)})
		return stats, nil
	}

	start := o.clock.Now()
	logger.Info("phase started", zap.Int("frontier_depth", depth))
	o.emit(progress.Event{Stage: progress.StagePhaseStart, Phase: string(PhaseExtract)})

	for depth > 0 {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("extract phase: %w", err)
		}
		if o.cfg.MaxExtract > 0 && stats.Attempted >= o.cfg.MaxExtract {
			logger.Info("extract cap reached", zap.Int("max_extract", o.cfg.MaxExtract), zap.Int("remaining", depth))
			break
		}
		head, outcome, err := o.frontier.PeekHighestPriority(ctx)
		if err != nil {
			return stats, fmt.Errorf("extract phase: %w", err)
		}
		if outcome == frontier.NotFound {
			break
		}

		var consumed string
		err = o.invoke(PhaseExtract, func() error {
			var callErr error
			consumed, callErr = o.phases.Extract(ctx)
			return callErr
		})
		stats.Attempted++
		if err != nil {
			stats.Failed++
			o.taskFailed(logger, PhaseExtract, head.URL, err)
		} else if consumed != "" && consumed != head.URL {
			logger.Debug("extract consumed a different url than the peeked head",
				zap.String("head", head.URL), zap.String("consumed", consumed))
		}

		next, err := o.frontier.QueueDepth(ctx)
		if err != nil {
			return stats, fmt.Errorf("extract phase: %w", err)
		}
		if next >= depth {
			stats.Stalled++
			logger.Warn("extract made no progress, dropping frontier head",
				zap.String("url", head.URL), zap.Float64("priority", head.Priority))
			if _, err := o.frontier.Dequeue(ctx, head.URL); err != nil {
				return stats, fmt.Errorf("extract phase: %w", err)
			}
			if next, err = o.frontier.QueueDepth(ctx); err != nil {
				return stats, fmt.Errorf("extract phase: %w", err)
			}
		}
		depth = next
	}
	stats.Duration = o.clock.Now().Sub(start)
	o.phaseDone(logger, stats)
	return stats, nil
}

// invoke runs one phase call, turning a panic into an error.
func (o *Orchestrator) invoke(phase Phase, call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("%s phase panicked: %v", phase, r)
		}
	}()
	if err := call(); err != nil {
		return eris.Wrapf(err, "%s task failed", phase)
	}
	return nil
}

func (o *Orchestrator) taskFailed(logger *zap.Logger, phase Phase, url string, err error) {
	logger.Error("task failed", zap.String("url", url), zap.Error(err))
	o.emit(progress.Event{Stage: progress.StageTaskError, Phase: string(phase), URL: url, Note: err.Error()})
}

func (o *Orchestrator) phaseDone(logger *zap.Logger, stats PhaseStats) {
	logger.Info("phase complete",
		zap.Int("attempted", stats.Attempted),
		zap.Int("failed", stats.Failed),
		zap.Int("stalled", stats.Stalled),
		zap.Duration("elapsed", stats.Duration),
	)
	o.emit(progress.Event{
		Stage:     progress.StagePhaseDone,
		Phase:     string(stats.Phase),
		Attempted: stats.Attempted,
		Failed:    stats.Failed,
		Dur:       stats.Duration,
	})
}

// snapshot records queue occupancy. A failing depth query is fatal: it means
// the frontier connection is gone.
func (o *Orchestrator) snapshot(ctx context.Context, logger *zap.Logger, after string) (Snapshot, error) {
	depth, err := o.frontier.QueueDepth(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot after %s: %w", after, err)
	}
	snap := Snapshot{
		Search:        o.queues.Search.Size(),
		Validate:      o.queues.Validate.Size(),
		Transform:     o.queues.Transform.Size(),
		Load:          o.queues.Load.Size(),
		FrontierDepth: depth,
		TakenAt:       o.clock.Now(),
	}
	logger.Info("queue snapshot",
		zap.String("after", after),
		zap.Int("search", snap.Search),
		zap.Int("validate", snap.Validate),
		zap.Int("transform", snap.Transform),
		zap.Int("load", snap.Load),
		zap.Int("frontier", snap.FrontierDepth),
	)
	o.emit(progress.Event{
		Stage: progress.StageSnapshot,
		Phase: after,
		Queues: progress.QueueSizes{
			Search:    snap.Search,
			Validate:  snap.Validate,
			Transform: snap.Transform,
			Load:      snap.Load,
			Frontier:  snap.FrontierDepth,
		},
	})
	return snap, nil
}

func (o *Orchestrator) emit(evt progress.Event) {
	evt.RunID = o.currentRunID()
	evt.TS = o.clock.Now()
	o.emitter.Emit(evt)
}

func (o *Orchestrator) currentRunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
