// Package pipeline defines the task records, phase contracts and the
// orchestrator that sequences the search, validate, extract, transform and
// load phases of a run.
package pipeline

import (
	"net/http"
	"time"
)

// Phase names one of the five sequential processing stages.
type Phase string

// Supported phases in execution order.
const (
	PhaseSearch    Phase = "search"
	PhaseValidate  Phase = "validate"
	PhaseExtract   Phase = "extract"
	PhaseTransform Phase = "transform"
	PhaseLoad      Phase = "load"
)

// Phases lists every phase in the order a run executes them.
var Phases = []Phase{PhaseSearch, PhaseValidate, PhaseExtract, PhaseTransform, PhaseLoad}

// Restaurant is one candidate entity loaded by the bootstrap batch source.
type Restaurant struct {
	Name       string            `json:"name" yaml:"name"`
	City       string            `json:"city,omitempty" yaml:"city,omitempty"`
	Region     string            `json:"region,omitempty" yaml:"region,omitempty"`
	Cuisine    string            `json:"cuisine,omitempty" yaml:"cuisine,omitempty"`
	Website    string            `json:"website,omitempty" yaml:"website,omitempty"`
	Stars      int               `json:"stars,omitempty" yaml:"stars,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Document is a fetched page handed from extract to transform.
type Document struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Header     http.Header   `json:"headers,omitempty"`
	Body       []byte        `json:"-"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration"`
}

// Record is the transformed output persisted by the load phase.
type Record struct {
	RunID       string            `json:"run_id"`
	Restaurant  Restaurant        `json:"restaurant"`
	URL         string            `json:"url"`
	StatusCode  int               `json:"status_code"`
	ContentHash string            `json:"content_hash"`
	ContentSize int               `json:"content_size"`
	ContentType string            `json:"content_type,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Task is one unit of work passed between phases. Tasks are plain values; a
// phase that wants to hand work downstream puts a new Task on its queue.
type Task struct {
	ID            string
	RunID         string
	Restaurant    Restaurant
	InitialSearch bool
	URL           string
	PriorityHint  float64
	Document      *Document
	Record        *Record
}

// Snapshot captures the occupancy of every work surface at one instant.
type Snapshot struct {
	Search        int
	Validate      int
	Transform     int
	Load          int
	FrontierDepth int
	TakenAt       time.Time
}

// PhaseStats reports how many tasks a phase attempted and how many failed.
type PhaseStats struct {
	Phase     Phase
	Attempted int
	Failed    int
	Skipped   bool
	Stalled   int
	Duration  time.Duration
}

// RunReport summarizes a completed (or aborted) run.
type RunReport struct {
	RunID     string
	Seeded    int
	Phases    []PhaseStats
	Final     Snapshot
	StartedAt time.Time
	Finished  time.Time
}

// Stats returns the stats recorded for the given phase, if any.
func (r RunReport) Stats(phase Phase) (PhaseStats, bool) {
	for _, s := range r.Phases {
		if s.Phase == phase {
			return s, true
		}
	}
	return PhaseStats{}, false
}
