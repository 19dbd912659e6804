package history

import "time"

// RunStatus is the outcome of a batch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunHalted    RunStatus = "halted"
	RunCancelled RunStatus = "cancelled"
)

// AttemptStatus is the outcome of one job inside a run.
type AttemptStatus string

const (
	AttemptRendered  AttemptStatus = "rendered"
	AttemptFailed    AttemptStatus = "failed"
	AttemptSkipped   AttemptStatus = "skipped"
	AttemptCancelled AttemptStatus = "cancelled"
)

// Run is one batch invocation.
type Run struct {
	ID           string
	Status       RunStatus
	Pending      int
	Rendered     int
	Failed       int
	Skipped      int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Attempt is one job processed by a run.
type Attempt struct {
	ID                int64
	RunID             string
	JobID             string
	Status            AttemptStatus
	ExitCode          *int
	OutputFile        string
	LogPath           string
	NarrationWarnings int
	ErrorMessage      string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Elapsed returns how long the attempt took.
func (a Attempt) Elapsed() time.Duration {
	if a.FinishedAt.Before(a.StartedAt) {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}
