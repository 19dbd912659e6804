package logs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"manimate/internal/logging"
	"manimate/internal/services"
)

// DefaultPattern matches per-job render logs.
const DefaultPattern = "*.txt"

// FileError records a log that could not be consolidated. The file is left in
// place.
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Result summarizes one consolidation pass.
type Result struct {
	CombinedPath string
	Consolidated int
	Appended     []string
	// Active lists logs skipped because a render still holds their lock.
	Active []string
	Errors []FileError
}

// Option configures Consolidate.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger reports per-file progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Consolidate appends every log in logsDir matching pattern to combinedName,
// each preceded by a "--- <file> ---" header, and deletes it afterwards. The
// combined log itself and logs locked by a running render are left alone.
// Per-file failures are collected in Result.Errors; the returned error is
// reserved for failures that stop the whole pass.
func Consolidate(ctx context.Context, logsDir, combinedName, pattern string, opts ...Option) (Result, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.NewComponentLogger(o.logger, "logs")

	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "logs", "consolidate", fmt.Sprintf("Invalid log pattern %q", pattern), err)
	}
	combinedName = filepath.Base(combinedName)
	combinedPath := filepath.Join(logsDir, combinedName)
	result := Result{CombinedPath: combinedPath}

	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, services.Wrap(services.ErrConfiguration, "logs", "list", "Failed to list log directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name() == combinedName {
			continue
		}
		if matched, _ := filepath.Match(pattern, entry.Name()); matched {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return result, nil
	}

	combinedLock := flock.New(combinedPath)
	if err := combinedLock.Lock(); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "logs", "lock", "Failed to lock combined log", err)
	}
	defer func() {
		_ = combinedLock.Unlock()
	}()
	combined, err := os.OpenFile(combinedPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return result, services.Wrap(services.ErrConfiguration, "logs", "open", "Failed to open combined log", err)
	}
	defer combined.Close()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		active, err := appendOne(combined, filepath.Join(logsDir, name), name)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, FileError{File: name, Err: err})
			logging.WarnWithContext(logger, "log consolidation failed; file left in place", "log_consolidate_failed",
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the log directory"),
				logging.String(logging.FieldImpact, "log remains outside the combined log"),
			)
		case active:
			result.Active = append(result.Active, name)
			logger.Debug("skipping active log", logging.String("file", name))
		default:
			result.Consolidated++
			result.Appended = append(result.Appended, name)
			logger.Debug("log consolidated", logging.String("file", name), logging.String(logging.FieldEventType, "log_consolidated"))
		}
	}
	if err := combined.Sync(); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "logs", "sync", "Failed to sync combined log", err)
	}
	return result, nil
}

// appendOne copies one log into combined and removes it. It reports active
// when a render still holds the log's lock.
func appendOne(combined *os.File, path, name string) (bool, error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}
	if !locked {
		return true, nil
	}
	defer func() {
		_ = lock.Unlock()
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read: %w", err)
	}
	block := make([]byte, 0, len(content)+len(name)+10)
	block = append(block, "\n--- "+name+" ---\n"...)
	block = append(block, content...)
	if _, err := combined.Write(block); err != nil {
		return false, fmt.Errorf("append: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("remove: %w", err)
	}
	return false, nil
}
