package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"manimate/internal/discovery"
	"manimate/internal/history"
	"manimate/internal/logging"
	"manimate/internal/narration"
	"manimate/internal/render"
	"manimate/internal/script"
	"manimate/internal/services"
)

// ErrAlreadyRunning is returned when another batch holds the work directory lock.
var ErrAlreadyRunning = errors.New("another manimate batch is already running")

// ErrLedgerUnwritable marks a failed ledger commit, which halts the batch.
var ErrLedgerUnwritable = errors.New("completion ledger unwritable")

// Preparer attaches narration to a document. *narration.Narrator satisfies it.
type Preparer interface {
	Prepare(ctx context.Context, doc script.Document) (script.Document, []narration.Warning)
}

// Renderer runs the engine for a staged document. *render.Driver satisfies it.
type Renderer interface {
	Render(ctx context.Context, doc script.Document, outputName, logPath string) (render.Result, error)
}

// Ledger records completed jobs. *ledger.Ledger satisfies it.
type Ledger interface {
	Done() (map[string]struct{}, error)
	Commit(id string) error
}

// Recorder stores run history. *history.Store satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, id string, startedAt time.Time) error
	FinishRun(ctx context.Context, run history.Run) error
	RecordAttempt(ctx context.Context, attempt history.Attempt) (int64, error)
}

// Notifier announces the outcome of a finished run.
type Notifier interface {
	RunFinished(ctx context.Context, summary Summary, elapsed time.Duration, runErr error)
}

// Config wires an Orchestrator. Narrator, History, Notifier and Observer are
// optional.
type Config struct {
	WorkDir   string
	Extension string
	LogDir    string
	LockPath  string

	Narrator Preparer
	Renderer Renderer
	Ledger   Ledger
	History  Recorder
	Notifier Notifier
	Observer Observer
	Logger   *slog.Logger
}

// JobRecord is the per-iteration state for one job.
type JobRecord struct {
	SourcePath string
	Document   script.Document
	OutputPath string
	LogPath    string
	StartedAt  time.Time
	RunID      string
}

// Orchestrator renders every pending script in sequence.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	// running guards the process; lock guards the work directory across processes.
	running sync.Mutex
	lock    *flock.Flock
}

// New validates cfg and returns an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.WorkDir == "" || cfg.LogDir == "" {
		return nil, errors.New("batch: work dir and log dir required")
	}
	if cfg.Renderer == nil || cfg.Ledger == nil {
		return nil, errors.New("batch: renderer and ledger required")
	}
	if cfg.LockPath == "" {
		cfg.LockPath = filepath.Join(cfg.WorkDir, ".manimate.lock")
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(cfg.Logger, "batch"),
		lock:   flock.New(cfg.LockPath),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// Run renders every pending job. Per-job failures are recorded in the summary
// and do not stop the batch. A missing engine or an unwritable ledger halts
// the run and is returned. Cancellation is checked between jobs and stops the
// active engine; the interrupted job is not committed.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if err := o.acquire(); err != nil {
		return Summary{}, err
	}
	defer o.release()

	runID := o.newID()
	summary := Summary{RunID: runID}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)
	started := o.now()
	o.startRun(ctx, runID)

	o.emit(runID, StateDiscovering, "")
	jobs, err := discovery.PendingJobs(o.cfg.WorkDir, o.cfg.Extension, o.cfg.Ledger)
	if err != nil {
		summary.Halted = true
		o.finishRun(ctx, summary, err)
		o.notify(ctx, summary, started, err)
		o.emit(runID, StateIdle, "")
		return summary, err
	}
	summary.Pending = len(jobs)
	logger.Info("batch started",
		logging.Int("pending", len(jobs)),
		logging.String(logging.FieldEventType, "batch_started"),
	)

	var runErr error
	for _, job := range jobs {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		result, fatal := o.process(ctx, runID, job)
		summary.Jobs = append(summary.Jobs, result)
		if result.Outcome == OutcomeCancelled {
			summary.Cancelled = true
			break
		}
		if fatal != nil {
			summary.Halted = true
			runErr = fatal
			break
		}
	}

	o.finishRun(ctx, summary, runErr)
	o.notify(ctx, summary, started, runErr)
	o.emit(runID, StateIdle, "")
	logger.Info("batch finished",
		logging.Int("rendered", summary.Count(OutcomeRendered)),
		logging.Int("failed", summary.Count(OutcomeFailed)),
		logging.Int("skipped", summary.Count(OutcomeSkipped)),
		logging.Bool("cancelled", summary.Cancelled),
		logging.Bool("halted", summary.Halted),
		logging.String(logging.FieldEventType, "batch_finished"),
	)
	if runErr == nil && summary.Cancelled {
		runErr = ctx.Err()
	}
	return summary, runErr
}

// RenderOne renders a single script regardless of the ledger. When commit is
// true a clean render is appended to the ledger.
func (o *Orchestrator) RenderOne(ctx context.Context, path string, commit bool) (JobResult, error) {
	if err := o.acquire(); err != nil {
		return JobResult{}, err
	}
	defer o.release()

	abs, err := filepath.Abs(path)
	if err != nil {
		return JobResult{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	runID := o.newID()
	ctx = services.WithRunID(ctx, runID)
	o.startRun(ctx, runID)

	job := discovery.Job{ID: filepath.Base(abs), Path: abs}
	result, fatal := o.processJob(ctx, runID, job, commit)
	summary := Summary{RunID: runID, Pending: 1, Jobs: []JobResult{result}, Halted: fatal != nil, Cancelled: result.Outcome == OutcomeCancelled}
	o.finishRun(ctx, summary, fatal)
	o.emit(runID, StateIdle, "")
	if fatal != nil {
		return result, fatal
	}
	if result.Outcome != OutcomeRendered {
		return result, result.Err
	}
	return result, nil
}

func (o *Orchestrator) process(ctx context.Context, runID string, job discovery.Job) (JobResult, error) {
	return o.processJob(ctx, runID, job, true)
}

// processJob runs one job through parse, narration, render and commit. The
// second return value is non-nil only for errors that must halt the batch.
func (o *Orchestrator) processJob(ctx context.Context, runID string, job discovery.Job, commit bool) (JobResult, error) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)
	record := JobRecord{SourcePath: job.Path, RunID: runID, StartedAt: o.now()}
	result := JobResult{JobID: job.ID, ExitCode: -1}

	doc, err := script.Load(job.Path)
	if err != nil {
		o.emit(runID, StateSkipping, job.ID)
		result.Outcome = OutcomeSkipped
		result.Err = err
		details := services.Details(err)
		logging.WarnWithContext(logger, "script skipped; document could not be parsed", "job_skipped",
			logging.String("source", job.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.String(logging.FieldImpact, "job stays pending and is retried on the next run"),
		)
		o.recordAttempt(ctx, record, &result)
		return result, nil
	}
	record.Document = doc

	o.emit(runID, StateRendering, job.ID)
	if o.cfg.Narrator != nil {
		prepared, warnings := o.cfg.Narrator.Prepare(ctx, doc)
		record.Document = prepared
		result.NarrationWarnings = len(warnings)
	}

	output := render.OutputName(job.ID)
	record.LogPath = filepath.Join(o.cfg.LogDir, render.LogFileName(job.ID, record.StartedAt))
	result.LogPath = record.LogPath

	logger.Info("rendering job",
		logging.String("source", job.Path),
		logging.String(logging.FieldLogPath, record.LogPath),
		logging.String(logging.FieldEventType, "job_started"),
	)
	rendered, err := o.cfg.Renderer.Render(ctx, record.Document, output, record.LogPath)
	record.OutputPath = rendered.VideoPath
	if record.OutputPath == "" {
		record.OutputPath = output
	}
	result.OutputPath = record.OutputPath
	result.ExitCode = rendered.ExitCode
	result.Elapsed = o.now().Sub(record.StartedAt)

	switch {
	case errors.Is(err, render.ErrEngineNotFound):
		result.Outcome = OutcomeFailed
		result.Err = err
		logging.ErrorWithContext(logger, "render engine not found; halting batch", "engine_missing",
			logging.Error(err),
			logging.String(logging.FieldLogPath, record.LogPath),
			logging.String(logging.FieldErrorHint, "install manim or set render.binary, then run manimate doctor"),
		)
		o.recordAttempt(ctx, record, &result)
		return result, err
	case ctx.Err() != nil:
		result.Outcome = OutcomeCancelled
		result.Err = ctx.Err()
		logging.WarnWithContext(logger, "render interrupted; job not committed", "job_cancelled",
			logging.String(logging.FieldLogPath, record.LogPath),
			logging.String(logging.FieldErrorHint, "run the batch again to resume"),
			logging.String(logging.FieldImpact, "job stays pending"),
		)
		o.recordAttempt(ctx, record, &result)
		return result, nil
	case err != nil:
		o.emit(runID, StateSkipping, job.ID)
		result.Outcome = OutcomeFailed
		result.Err = err
		o.logFailure(logger, record, err)
		o.recordAttempt(ctx, record, &result)
		return result, nil
	case !rendered.Succeeded():
		o.emit(runID, StateSkipping, job.ID)
		result.Outcome = OutcomeFailed
		result.Err = services.Wrap(services.ErrExternalTool, "render", "exit", fmt.Sprintf("Render engine exited with status %d", rendered.ExitCode), nil)
		o.logFailure(logger, record, result.Err)
		o.recordAttempt(ctx, record, &result)
		return result, nil
	}

	if commit {
		o.emit(runID, StateCommitting, job.ID)
		if err := o.cfg.Ledger.Commit(job.ID); err != nil {
			result.Outcome = OutcomeFailed
			result.Err = fmt.Errorf("%w: %w", ErrLedgerUnwritable, err)
			logging.ErrorWithContext(logger, "ledger commit failed; halting batch", "ledger_commit_failed",
				logging.Error(err),
				logging.String(logging.FieldLogPath, record.LogPath),
				logging.String(logging.FieldErrorHint, "check permissions on the completion ledger"),
			)
			o.recordAttempt(ctx, record, &result)
			return result, result.Err
		}
	}

	result.Outcome = OutcomeRendered
	logger.Info("job rendered",
		logging.String("output", record.OutputPath),
		logging.String(logging.FieldLogPath, record.LogPath),
		logging.Int("narration_warnings", result.NarrationWarnings),
		logging.Duration("elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "job_rendered"),
	)
	o.recordAttempt(ctx, record, &result)
	return result, nil
}

func (o *Orchestrator) logFailure(logger *slog.Logger, record JobRecord, err error) {
	details := services.Details(err)
	logging.WarnWithContext(logger, "render failed; job left pending", "job_failed",
		logging.String("source", record.SourcePath),
		logging.String(logging.FieldLogPath, record.LogPath),
		logging.String("error_kind", details.Kind),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String(logging.FieldImpact, "job is retried on the next run"),
	)
}

// acquire admits one Run or RenderOne at a time. A flock.Flock reports success
// when it already holds the lock, so callers in this process are turned away
// by the mutex first.
func (o *Orchestrator) acquire() error {
	if !o.running.TryLock() {
		return ErrAlreadyRunning
	}
	ok, err := o.lock.TryLock()
	if err != nil {
		o.running.Unlock()
		return fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		o.running.Unlock()
		return ErrAlreadyRunning
	}
	return nil
}

func (o *Orchestrator) release() {
	if err := o.lock.Unlock(); err != nil {
		o.logger.Warn("failed to release batch lock", logging.Error(err))
	}
	o.running.Unlock()
}

func (o *Orchestrator) emit(runID string, state State, jobID string) {
	if o.cfg.Observer == nil {
		return
	}
	o.cfg.Observer(Event{RunID: runID, State: state, JobID: jobID, At: o.now()})
}

func (o *Orchestrator) startRun(ctx context.Context, runID string) {
	if o.cfg.History == nil {
		return
	}
	if err := o.cfg.History.StartRun(context.WithoutCancel(ctx), runID, o.now()); err != nil {
		logging.WarnWithContext(o.logger, "run history unavailable", "history_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run is not recorded in manimate history"),
		)
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, summary Summary, runErr error) {
	if o.cfg.History == nil {
		return
	}
	status := history.RunCompleted
	switch {
	case summary.Halted:
		status = history.RunHalted
	case summary.Cancelled:
		status = history.RunCancelled
	}
	finished := o.now()
	run := history.Run{
		ID:         summary.RunID,
		Status:     status,
		Pending:    summary.Pending,
		Rendered:   summary.Count(OutcomeRendered),
		Failed:     summary.Count(OutcomeFailed),
		Skipped:    summary.Count(OutcomeSkipped),
		FinishedAt: &finished,
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	if err := o.cfg.History.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Debug("run history update failed", logging.Error(err))
	}
}

// notify skips cancelled runs and runs that found nothing pending.
func (o *Orchestrator) notify(ctx context.Context, summary Summary, started time.Time, runErr error) {
	if o.cfg.Notifier == nil || summary.Cancelled {
		return
	}
	if summary.Pending == 0 && runErr == nil {
		return
	}
	o.cfg.Notifier.RunFinished(context.WithoutCancel(ctx), summary, o.now().Sub(started), runErr)
}

func (o *Orchestrator) recordAttempt(ctx context.Context, record JobRecord, result *JobResult) {
	if o.cfg.History == nil {
		return
	}
	attempt := history.Attempt{
		RunID:             record.RunID,
		JobID:             result.JobID,
		Status:            history.AttemptStatus(result.Outcome),
		OutputFile:        record.OutputPath,
		LogPath:           record.LogPath,
		NarrationWarnings: result.NarrationWarnings,
		StartedAt:         record.StartedAt,
		FinishedAt:        o.now(),
	}
	if result.ExitCode >= 0 {
		code := result.ExitCode
		attempt.ExitCode = &code
	}
	if result.Err != nil {
		attempt.ErrorMessage = result.Err.Error()
	}
	if _, err := o.cfg.History.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		o.logger.Debug("attempt history insert failed", logging.Error(err))
	}
}
