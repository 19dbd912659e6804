package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manimate/internal/batch"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (r *countingRunner) Run(context.Context) (batch.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return batch.Summary{}, err
	}
	return batch.Summary{}, nil
}

func (r *countingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func startWatcher(t *testing.T, runner Runner, opts Options) {
	t.Helper()
	w, err := New(runner, opts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcherRerunsOnNewScript(t *testing.T) {
	dir := t.TempDir()
	runner := &countingRunner{}
	startWatcher(t, runner, Options{Dir: dir, Extension: ".json", Debounce: 20 * time.Millisecond})

	require.Eventually(t, func() bool { return runner.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644))
	require.Eventually(t, func() bool { return runner.Calls() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "test.json")
	runner := &countingRunner{}
	startWatcher(t, runner, Options{Dir: dir, Extension: ".json", Debounce: 20 * time.Millisecond, Ignore: []string{staging}})

	require.Eventually(t, func() bool { return runner.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "done.txt"), []byte("a.json\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a.json.tmp-1"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(staging, []byte("{}"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, runner.Calls())
}

func TestWatcherReturnsFatalBatchError(t *testing.T) {
	dir := t.TempDir()
	fatal := errors.New("engine missing")
	runner := &countingRunner{errs: []error{fatal}}
	w, err := New(runner, Options{Dir: dir, Extension: ".json"})
	require.NoError(t, err)

	err = w.Run(context.Background())
	require.ErrorIs(t, err, fatal)
}

func TestWatcherToleratesConcurrentBatch(t *testing.T) {
	dir := t.TempDir()
	runner := &countingRunner{errs: []error{batch.ErrAlreadyRunning}}
	var seen []error
	var mu sync.Mutex
	startWatcher(t, runner, Options{
		Dir:       dir,
		Extension: ".json",
		Debounce:  20 * time.Millisecond,
		OnBatch: func(_ batch.Summary, err error) {
			mu.Lock()
			seen = append(seen, err)
			mu.Unlock()
		},
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("{}"), 0o644))
	require.Eventually(t, func() bool { return runner.Calls() >= 2 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.ErrorIs(t, seen[0], batch.ErrAlreadyRunning)
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "a.JSON")
	require.NoError(t, os.WriteFile(script, []byte("{}"), 0o644))
	sub := filepath.Join(dir, "nested.json")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w, err := New(&countingRunner{}, Options{Dir: dir, Extension: ".json"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create script", fsnotify.Event{Name: script, Op: fsnotify.Create}, true},
		{"write script", fsnotify.Event{Name: script, Op: fsnotify.Write}, true},
		{"chmod ignored", fsnotify.Event{Name: script, Op: fsnotify.Chmod}, false},
		{"remove ignored", fsnotify.Event{Name: script, Op: fsnotify.Remove}, false},
		{"directory ignored", fsnotify.Event{Name: sub, Op: fsnotify.Create}, false},
		{"rename of vanished script", fsnotify.Event{Name: filepath.Join(dir, "gone.json"), Op: fsnotify.Rename}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}
