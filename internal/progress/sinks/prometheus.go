package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/restaurant-pipeline/internal/progress"
)

// PrometheusSink exports run progress through Prometheus collectors. When a
// textfile path is set, Close writes the registry there in the node-exporter
// textfile format, which is how a batch job with no listener hands its
// metrics to a scraper.
type PrometheusSink struct {
	runs          *prometheus.CounterVec
	phaseTasks    *prometheus.CounterVec
	phaseFailures *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	queueSize     *prometheus.GaugeVec

	fetchRequests *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
	textfile string
}

// NewPrometheusSink registers the collectors on reg.
func NewPrometheusSink(reg *prometheus.Registry, textfile string) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &PrometheusSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs partitioned by result.",
		}, []string{"result"}),
		phaseTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_phase_tasks_total",
			Help: "Tasks attempted per phase.",
		}, []string{"phase"}),
		phaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_phase_failures_total",
			Help: "Tasks that returned an error per phase.",
		}, []string{"phase"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_phase_duration_seconds",
			Help:    "Wall time spent draining a phase.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"phase"}),
		queueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_queue_size",
			Help: "Queue occupancy at the last snapshot.",
		}, []string{"queue"}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_fetch_requests_total",
			Help: "Fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_fetch_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by status class.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status_class"}),
		gatherer: reg,
		textfile: textfile,
	}
	for _, collector := range []prometheus.Collector{
		s.runs,
		s.phaseTasks,
		s.phaseFailures,
		s.phaseDuration,
		s.queueSize,
		s.fetchRequests,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunDone:
			s.runs.WithLabelValues("done").Inc()
		case progress.StageRunAborted:
			s.runs.WithLabelValues("aborted").Inc()
		case progress.StagePhaseDone:
			s.phaseTasks.WithLabelValues(evt.Phase).Add(float64(evt.Attempted))
			s.phaseFailures.WithLabelValues(evt.Phase).Add(float64(evt.Failed))
			s.phaseDuration.WithLabelValues(evt.Phase).Observe(evt.Dur.Seconds())
		case progress.StageSnapshot:
			s.queueSize.WithLabelValues("search").Set(float64(evt.Queues.Search))
			s.queueSize.WithLabelValues("validate").Set(float64(evt.Queues.Validate))
			s.queueSize.WithLabelValues("transform").Set(float64(evt.Queues.Transform))
			s.queueSize.WithLabelValues("load").Set(float64(evt.Queues.Load))
			s.queueSize.WithLabelValues("frontier").Set(float64(evt.Queues.Frontier))
		case progress.StageFetchDone:
			s.handleFetch(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) handleFetch(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(evt.Site, statusClass).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(evt.Site).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close writes the textfile export when one is configured.
func (s *PrometheusSink) Close(context.Context) error {
	if s.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.textfile, s.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
