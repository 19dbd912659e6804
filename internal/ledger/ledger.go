package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"manimate/internal/services"
)

// Ledger is the append-only record of completed jobs. Each line holds the base
// filename of one script whose render finished cleanly.
type Ledger struct {
	path string
	lock *flock.Flock
}

// New returns a ledger backed by path. The file is created on first commit.
func New(path string) *Ledger {
	return &Ledger{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Done returns the set of completed job IDs. A missing ledger means nothing
// has completed yet.
func (l *Ledger) Done() (map[string]struct{}, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "read", "Failed to read completion ledger", err)
	}
	done := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		done[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "scan", "Failed to parse completion ledger", err)
	}
	return done, nil
}

// IsDone reports whether id (a script base filename) was committed. Matching
// is exact after trimming surrounding whitespace.
func (l *Ledger) IsDone(id string) (bool, error) {
	done, err := l.Done()
	if err != nil {
		return false, err
	}
	_, ok := done[strings.TrimSpace(id)]
	return ok, nil
}

// Commit appends id to the ledger under an exclusive lock and syncs the file.
// Existing entries are never rewritten or deduplicated.
func (l *Ledger) Commit(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrValidation, "ledger", "commit", "Job id is empty", nil)
	}
	if strings.ContainsAny(id, "\r\n") || id != filepath.Base(id) {
		return services.Wrap(services.ErrValidation, "ledger", "commit", fmt.Sprintf("Job id %q must be a bare filename", id), nil)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "ledger", "commit", "Failed to create ledger directory", err)
	}
	if err := l.lock.Lock(); err != nil {
		return services.Wrap(services.ErrConfiguration, "ledger", "lock", "Failed to lock completion ledger", err)
	}
	defer func() {
		_ = l.lock.Unlock()
	}()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "ledger", "open", "Failed to open completion ledger", err)
	}
	entry := id + "\n"
	terminated, err := endsWithNewline(f)
	if err != nil {
		_ = f.Close()
		return services.Wrap(services.ErrConfiguration, "ledger", "read", "Failed to read completion ledger", err)
	}
	if !terminated {
		entry = "\n" + entry
	}
	if _, err := f.WriteString(entry); err != nil {
		_ = f.Close()
		return services.Wrap(services.ErrConfiguration, "ledger", "append", "Failed to append to completion ledger", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return services.Wrap(services.ErrConfiguration, "ledger", "sync", "Failed to sync completion ledger", err)
	}
	if err := f.Close(); err != nil {
		return services.Wrap(services.ErrConfiguration, "ledger", "close", "Failed to close completion ledger", err)
	}
	return nil
}

// endsWithNewline reports whether f is empty or its last byte is a newline.
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}
