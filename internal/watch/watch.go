package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"manimate/internal/batch"
	"manimate/internal/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle before
// starting a batch.
const DefaultDebounce = 2 * time.Second

// Runner executes one batch. *batch.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context) (batch.Summary, error)
}

// Options configures a Watcher.
type Options struct {
	Dir       string
	Extension string
	Debounce  time.Duration
	// Ignore lists absolute paths whose events never trigger a batch, such as
	// a staging file that lives inside the work directory.
	Ignore []string
	// OnBatch observes every completed batch.
	OnBatch func(batch.Summary, error)
	Logger  *slog.Logger
}

// Watcher reruns the batch whenever script files appear or change.
type Watcher struct {
	runner Runner
	opts   Options
	ignore map[string]struct{}
	logger *slog.Logger
}

// New validates opts and returns a Watcher.
func New(runner Runner, opts Options) (*Watcher, error) {
	if runner == nil {
		return nil, errors.New("watch: runner required")
	}
	dir, err := filepath.Abs(strings.TrimSpace(opts.Dir))
	if err != nil || strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("watch: invalid directory %q", opts.Dir)
	}
	opts.Dir = dir
	opts.Extension = strings.ToLower(opts.Extension)
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ignore := make(map[string]struct{}, len(opts.Ignore))
	for _, path := range opts.Ignore {
		if abs, err := filepath.Abs(path); err == nil {
			ignore[abs] = struct{}{}
		}
	}
	return &Watcher{
		runner: runner,
		opts:   opts,
		ignore: ignore,
		logger: logging.NewComponentLogger(opts.Logger, "watch"),
	}, nil
}

// Run performs an initial batch, then reruns it after relevant changes until
// ctx is cancelled. A batch error other than a concurrent run is returned.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.opts.Dir, err)
	}
	w.logger.Info("watching for scripts",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String("dir", w.opts.Dir),
		logging.String("extension", w.opts.Extension),
		logging.Duration("debounce", w.opts.Debounce),
	)

	if err := w.runBatch(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("script change detected",
				logging.String(logging.FieldEventType, "watch_change"),
				logging.String("path", event.Name),
				logging.String("op", event.Op.String()),
			)
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.opts.Debounce)
			pending = true
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some script changes may be missed until the next event"),
			)
		case <-timer.C:
			pending = false
			if err := w.runBatch(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) runBatch(ctx context.Context) error {
	summary, err := w.runner.Run(ctx)
	if w.opts.OnBatch != nil {
		w.opts.OnBatch(summary, err)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, batch.ErrAlreadyRunning):
		logging.WarnWithContext(w.logger, "batch already running; waiting for the next change", "watch_batch_busy",
			logging.String(logging.FieldImpact, "changes are picked up by the running batch or the next one"),
		)
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

// relevant reports whether event concerns a visible script file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !strings.EqualFold(filepath.Ext(name), w.opts.Extension) {
		return false
	}
	if abs, err := filepath.Abs(event.Name); err == nil {
		if _, skip := w.ignore[abs]; skip {
			return false
		}
	}
	if event.Has(fsnotify.Rename) {
		return true
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.Mode().IsRegular()
}
