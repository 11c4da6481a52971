package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/progress"
)

// LogSink writes each event as a structured log line at debug level, except
// task errors and aborts which are warnings.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress")}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Phase != "" {
			fields = append(fields, zap.String("phase", evt.Phase))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		switch evt.Stage {
		case progress.StagePhaseDone:
			fields = append(fields, zap.Int("attempted", evt.Attempted), zap.Int("failed", evt.Failed), zap.Duration("dur", evt.Dur))
		case progress.StageSnapshot:
			fields = append(fields,
				zap.Int("search", evt.Queues.Search),
				zap.Int("validate", evt.Queues.Validate),
				zap.Int("transform", evt.Queues.Transform),
				zap.Int("load", evt.Queues.Load),
				zap.Int("frontier", evt.Queues.Frontier),
			)
		case progress.StageFetchDone:
			fields = append(fields,
				zap.String("site", evt.Site),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int64("bytes", evt.Bytes),
				zap.Duration("dur", evt.Dur),
			)
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == progress.StageTaskError || evt.Stage == progress.StageRunAborted {
			s.logger.Warn("progress event", fields...)
			continue
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
