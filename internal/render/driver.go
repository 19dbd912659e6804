package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"manimate/internal/config"
	"manimate/internal/fileutil"
	"manimate/internal/logging"
	"manimate/internal/script"
	"manimate/internal/services"
	"manimate/internal/textutil"
)

const (
	logStampLayout     = "20060102-150405"
	maxLogOpenAttempts = 3
)

// Settings holds the engine invocation parameters.
type Settings struct {
	Binary      string
	QualityFlag string
	Module      string
	Scene       string
	StagingPath string
	// Dir is the engine working directory; empty means the current directory.
	Dir string
	// VideoDir is where the engine writes videos for this module and quality.
	VideoDir string
	Timeout  time.Duration
	Grace    time.Duration
}

// SettingsFromConfig builds Settings from the [render] and [paths] sections.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Binary:      cfg.Render.Binary,
		QualityFlag: cfg.QualityFlag(),
		Module:      cfg.Render.Module,
		Scene:       cfg.Render.Scene,
		StagingPath: cfg.Paths.StagingFile,
		Dir:         cfg.Render.ProjectDir,
		VideoDir:    filepath.Join(cfg.Paths.OutputDir, moduleName(cfg.Render.Module), cfg.QualityDir()),
		Timeout:     time.Duration(cfg.Render.TimeoutSeconds) * time.Second,
		Grace:       time.Duration(cfg.Render.GraceSeconds) * time.Second,
	}
}

// Result describes one finished engine run.
type Result struct {
	ExitCode  int
	Output    string
	VideoPath string
	LogPath   string
	Elapsed   time.Duration
}

// Succeeded reports a clean engine exit.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Driver stages documents and runs the engine for them.
type Driver struct {
	backend  Backend
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewDriver constructs a driver. A nil backend runs the engine as a subprocess.
func NewDriver(backend Backend, settings Settings, logger *slog.Logger) *Driver {
	if backend == nil {
		backend = CommandBackend{}
	}
	if settings.Grace <= 0 {
		settings.Grace = 10 * time.Second
	}
	return &Driver{
		backend:  backend,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "render"),
		now:      time.Now,
	}
}

// Settings returns the invocation parameters in use.
func (d *Driver) Settings() Settings {
	return d.settings
}

// Render writes doc to the staging file, then runs the engine with its output
// captured in logPath. The log file is locked for the duration of the run and
// closed on every path. A non-zero exit is reported through Result with a nil
// error; errors are reserved for staging, log, launch, timeout and
// cancellation failures.
func (d *Driver) Render(ctx context.Context, doc script.Document, outputName, logPath string) (Result, error) {
	result := Result{ExitCode: -1, Output: outputName, VideoPath: d.VideoPath(outputName), LogPath: logPath}
	if strings.TrimSpace(outputName) == "" {
		return result, services.Wrap(services.ErrValidation, "render", "prepare", "Output name is empty", nil)
	}

	data, err := script.Marshal(doc)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "render", "stage", "Failed to encode document", err)
	}
	if err := fileutil.WriteAtomic(d.settings.StagingPath, data, 0o644); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "render", "stage", "Failed to write staging file", err)
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "render", "log", "Failed to create log directory", err)
	}
	logFile, lock, err := openJobLog(logPath)
	if err != nil {
		return result, err
	}
	defer func() {
		_ = logFile.Close()
		_ = lock.Unlock()
	}()

	runCtx := ctx
	if d.settings.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.settings.Timeout)
		defer cancel()
	}

	inv := Invocation{
		Binary:      d.settings.Binary,
		QualityFlag: d.settings.QualityFlag,
		Module:      d.settings.Module,
		Scene:       d.settings.Scene,
		Output:      outputName,
		ScriptFile:  d.settings.StagingPath,
		Dir:         d.settings.Dir,
		GracePeriod: d.settings.Grace,
	}
	d.logger.Debug("launching render engine",
		logging.String("binary", inv.Binary),
		logging.Any("args", inv.Args()),
		logging.String(logging.FieldLogPath, logPath),
	)

	started := d.now()
	code, err := d.backend.Run(runCtx, inv, logFile)
	result.Elapsed = d.now().Sub(started)
	result.ExitCode = code
	if err != nil {
		if errors.Is(err, ErrEngineNotFound) {
			return result, err
		}
		return result, fmt.Errorf("render %s: %w", outputName, err)
	}
	return result, nil
}

// openJobLog locks logPath before truncating it for writing. The lock creates
// the file; if log consolidation removed it between the create and the lock,
// the lock is retaken on a fresh file.
func openJobLog(logPath string) (*os.File, *flock.Flock, error) {
	for attempt := 0; attempt < maxLogOpenAttempts; attempt++ {
		lock := flock.New(logPath, flock.SetPermissions(0o644))
		if err := lock.Lock(); err != nil {
			return nil, nil, services.Wrap(services.ErrConfiguration, "render", "log", "Failed to lock job log", err)
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_TRUNC, 0)
		if err == nil {
			return f, lock, nil
		}
		_ = lock.Unlock()
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, services.Wrap(services.ErrConfiguration, "render", "log", "Failed to open job log", err)
		}
	}
	return nil, nil, services.Wrap(services.ErrConfiguration, "render", "log", "Job log kept disappearing while being opened", nil)
}

// VideoPath returns where the engine writes outputName.
func (d *Driver) VideoPath(outputName string) string {
	if d.settings.VideoDir == "" {
		return outputName
	}
	return filepath.Join(d.settings.VideoDir, outputName)
}

// LogFileName returns manim_log_<name>_<YYYYMMDD-HHMMSS>.txt for a job.
func LogFileName(jobID string, at time.Time) string {
	return fmt.Sprintf("manim_log_%s_%s.txt", jobName(jobID), at.Format(logStampLayout))
}

// OutputName returns the video filename the engine writes for a job.
func OutputName(jobID string) string {
	return jobName(jobID) + ".mp4"
}

// moduleName returns the engine module without directory or extension.
func moduleName(module string) string {
	base := filepath.Base(module)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// jobName strips the extension and characters other platforms reject, so
// "what is: recursion?.json" renders as "what is- recursion".
func jobName(jobID string) string {
	base := filepath.Base(jobID)
	return textutil.SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))
}
