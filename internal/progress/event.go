package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage names the milestone an Event reports.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunAborted Stage = "RUN_ABORTED"
	StagePhaseStart Stage = "PHASE_START"
	StagePhaseDone  Stage = "PHASE_DONE"
	StagePhaseSkip  Stage = "PHASE_SKIP"
	StageTaskError  Stage = "TASK_ERROR"
	StageSnapshot   Stage = "SNAPSHOT"
	StageFetchDone  Stage = "FETCH_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// QueueSizes is the occupancy carried by SNAPSHOT events.
type QueueSizes struct {
	Search    int
	Validate  int
	Transform int
	Load      int
	Frontier  int
}

// Event captures one milestone of a pipeline run.
type Event struct {
	RunID string
	TS    time.Time
	Stage Stage
	// Phase scopes phase, task and snapshot events.
	Phase string
	// Site and URL scope fetch and task events.
	Site string
	URL  string
	// Attempted and Failed are the phase counters on PHASE_DONE.
	Attempted int
	Failed    int
	Queues    QueueSizes
	// Bytes and StatusClass describe a completed fetch.
	Bytes       int64
	StatusClass StatusClass
	Dur         time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunAborted, StageSnapshot:
	case StagePhaseStart, StagePhaseDone, StagePhaseSkip, StageTaskError:
		if e.Phase == "" {
			return fmt.Errorf("%s requires phase", e.Stage)
		}
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
