package batch

import "time"

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateRendering   State = "rendering"
	StateCommitting  State = "committing"
	StateSkipping    State = "skipping"
)

// Event reports a state transition. JobID is empty for run-level states.
type Event struct {
	RunID string
	State State
	JobID string
	At    time.Time
}

// Observer receives state transitions synchronously. It must not block.
type Observer func(Event)

// Outcome classifies how a job ended.
type Outcome string

const (
	OutcomeRendered  Outcome = "rendered"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCancelled Outcome = "cancelled"
)

// JobResult describes one processed job.
type JobResult struct {
	JobID             string
	Outcome           Outcome
	ExitCode          int
	OutputPath        string
	LogPath           string
	NarrationWarnings int
	Err               error
	Elapsed           time.Duration
}

// Summary is the result of one run.
type Summary struct {
	RunID   string
	Pending int
	Jobs    []JobResult
	// Halted is set when a fatal error stopped the run early.
	Halted    bool
	Cancelled bool
}

// Count returns how many jobs ended with outcome.
func (s Summary) Count(outcome Outcome) int {
	n := 0
	for _, job := range s.Jobs {
		if job.Outcome == outcome {
			n++
		}
	}
	return n
}

// IDs returns the job IDs that ended with outcome, in processing order.
func (s Summary) IDs(outcome Outcome) []string {
	var ids []string
	for _, job := range s.Jobs {
		if job.Outcome == outcome {
			ids = append(ids, job.JobID)
		}
	}
	return ids
}
