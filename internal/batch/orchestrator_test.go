package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"manimate/internal/audiocache"
	"manimate/internal/batch"
	"manimate/internal/config"
	"manimate/internal/history"
	"manimate/internal/ledger"
	"manimate/internal/narration"
	"manimate/internal/render"
	"manimate/internal/script"
	"manimate/internal/testsupport"
	"manimate/internal/timing"
)

type harness struct {
	cfg     *config.Config
	backend *testsupport.FakeBackend
	synth   *testsupport.FakeSynthesizer
	ledger  *ledger.Ledger
	history *history.Store
	events  []batch.Event
	orch    *batch.Orchestrator
}

func newHarness(t *testing.T, mutate func(*batch.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:     cfg,
		backend: &testsupport.FakeBackend{LogOutput: "ok\n"},
		synth:   &testsupport.FakeSynthesizer{},
		ledger:  ledger.New(cfg.LedgerPath()),
		history: testsupport.MustOpenHistory(t, cfg),
	}
	cache, err := audiocache.New(cfg.Paths.CacheDir, h.synth, &testsupport.FakeProber{Seconds: 2})
	if err != nil {
		t.Fatalf("audiocache.New: %v", err)
	}
	bc := batch.Config{
		WorkDir:   cfg.Paths.WorkDir,
		Extension: cfg.Scripts.Extension,
		LogDir:    cfg.Paths.LogDir,
		LockPath:  cfg.BatchLockPath(),
		Narrator:  narration.New(cache, timing.FromConfig(cfg.Timing), cfg.Voice.Voice, nil),
		Renderer:  render.NewDriver(h.backend, render.SettingsFromConfig(cfg), nil),
		Ledger:    h.ledger,
		History:   h.history,
		Observer:  func(e batch.Event) { h.events = append(h.events, e) },
	}
	if mutate != nil {
		mutate(&bc)
	}
	orch, err := batch.New(bc)
	if err != nil {
		t.Fatalf("batch.New: %v", err)
	}
	h.orch = orch
	return h
}

func (h *harness) writeScripts(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		testsupport.WriteScript(t, h.cfg.Paths.WorkDir, name, testsupport.SampleDocument())
	}
}

func (h *harness) done(t *testing.T) map[string]struct{} {
	t.Helper()
	set, err := h.ledger.Done()
	if err != nil {
		t.Fatalf("ledger.Done: %v", err)
	}
	return set
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.writeScripts(t, "b.json", "a.json")

	first, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if got := first.IDs(batch.OutcomeRendered); !equalStrings(got, []string{"a.json", "b.json"}) {
		t.Fatalf("unexpected rendered jobs: %v", got)
	}
	if got := h.backend.Outputs(); !equalStrings(got, []string{"a.mp4", "b.mp4"}) {
		t.Fatalf("unexpected engine outputs: %v", got)
	}
	synthCalls := len(h.synth.Calls())

	second, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Pending != 0 || len(second.Jobs) != 0 {
		t.Fatalf("expected nothing pending on rerun, got %+v", second)
	}
	if len(h.backend.Runs()) != 2 {
		t.Fatalf("engine ran again on rerun: %d runs", len(h.backend.Runs()))
	}
	if len(h.synth.Calls()) != synthCalls {
		t.Fatal("narration synthesized again on rerun")
	}
	if len(h.done(t)) != 2 {
		t.Fatalf("unexpected ledger: %v", h.done(t))
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.ExitCodes = map[string]int{"b.mp4": 1}
	h.writeScripts(t, "a.json", "b.json", "c.json")

	summary, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := summary.IDs(batch.OutcomeRendered); !equalStrings(got, []string{"a.json", "c.json"}) {
		t.Fatalf("unexpected rendered jobs: %v", got)
	}
	failed := summary.Jobs[1]
	if failed.JobID != "b.json" || failed.Outcome != batch.OutcomeFailed || failed.ExitCode != 1 {
		t.Fatalf("unexpected failed job: %+v", failed)
	}
	if _, err := os.Stat(failed.LogPath); err != nil {
		t.Fatalf("failed job log missing: %v", err)
	}
	set := h.done(t)
	if _, ok := set["b.json"]; ok {
		t.Fatal("failed job was committed")
	}

	h.backend.ExitCodes = nil
	retry, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if got := retry.IDs(batch.OutcomeRendered); !equalStrings(got, []string{"b.json"}) {
		t.Fatalf("expected only b.json retried, got %v", got)
	}
}

func TestRunReportsEngineVideoPath(t *testing.T) {
	h := newHarness(t, nil)
	h.writeScripts(t, "a.json")

	summary, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := filepath.Join(h.cfg.Paths.OutputDir, "main", "480p15", "a.mp4")
	if got := summary.Jobs[0].OutputPath; got != want {
		t.Fatalf("output path = %q, want %q", got, want)
	}
	last, err := h.history.LastAttempts(context.Background())
	if err != nil {
		t.Fatalf("LastAttempts: %v", err)
	}
	if got := last["a.json"].OutputFile; got != want {
		t.Fatalf("recorded output = %q, want %q", got, want)
	}
}

func TestRunSkipsMalformedScripts(t *testing.T) {
	h := newHarness(t, nil)
	h.writeScripts(t, "a.json")
	testsupport.WriteText(t, filepath.Join(h.cfg.Paths.WorkDir, "broken.json"), "{not json")

	summary, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := summary.IDs(batch.OutcomeSkipped); !equalStrings(got, []string{"broken.json"}) {
		t.Fatalf("expected broken.json skipped, got %v", got)
	}
	if got := summary.IDs(batch.OutcomeRendered); !equalStrings(got, []string{"a.json"}) {
		t.Fatalf("expected a.json rendered, got %v", got)
	}
	if _, ok := h.done(t)["broken.json"]; ok {
		t.Fatal("skipped script was committed")
	}
}

func TestRunHaltsWhenEngineMissing(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.Errs = map[string]error{"a.mp4": render.ErrEngineNotFound}
	h.writeScripts(t, "a.json", "b.json")

	summary, err := h.orch.Run(context.Background())
	if !errors.Is(err, render.ErrEngineNotFound) {
		t.Fatalf("expected ErrEngineNotFound, got %v", err)
	}
	if !summary.Halted || len(summary.Jobs) != 1 {
		t.Fatalf("expected halt after first job, got %+v", summary)
	}
	if len(h.backend.Runs()) != 1 {
		t.Fatalf("engine launched after fatal error: %d runs", len(h.backend.Runs()))
	}
	if len(h.done(t)) != 0 {
		t.Fatal("nothing should be committed")
	}
}

type unwritableLedger struct{}

func (unwritableLedger) Done() (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (unwritableLedger) Commit(string) error {
	return errors.New("read-only file system")
}

func TestRunHaltsWhenLedgerUnwritable(t *testing.T) {
	h := newHarness(t, func(bc *batch.Config) {
		bc.Ledger = unwritableLedger{}
	})
	h.writeScripts(t, "a.json", "b.json")

	summary, err := h.orch.Run(context.Background())
	if !errors.Is(err, batch.ErrLedgerUnwritable) {
		t.Fatalf("expected ErrLedgerUnwritable, got %v", err)
	}
	if !summary.Halted || len(h.backend.Runs()) != 1 {
		t.Fatalf("expected halt after first commit failure, summary=%+v runs=%d", summary, len(h.backend.Runs()))
	}
}

func TestRunCancellationDoesNotCommit(t *testing.T) {
	h := newHarness(t, nil)
	h.writeScripts(t, "a.json", "b.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.backend.OnRun = func(runCtx context.Context, inv render.Invocation) error {
		cancel()
		return runCtx.Err()
	}

	summary, err := h.orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !summary.Cancelled || len(summary.Jobs) != 1 || summary.Jobs[0].Outcome != batch.OutcomeCancelled {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(h.backend.Runs()) != 1 {
		t.Fatalf("second job started after cancellation")
	}
	if len(h.done(t)) != 0 {
		t.Fatal("cancelled job was committed")
	}
}

func TestRunRefusesConcurrentBatch(t *testing.T) {
	h := newHarness(t, nil)
	other := flock.New(h.cfg.BatchLockPath())
	if err := other.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer func() { _ = other.Unlock() }()

	if _, err := h.orch.Run(context.Background()); !errors.Is(err, batch.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestRunRefusesSecondBatchInSameProcess(t *testing.T) {
	h := newHarness(t, func(bc *batch.Config) { bc.Observer = nil })
	h.writeScripts(t, "a.json")
	entered := make(chan struct{})
	unblock := make(chan struct{})
	h.backend.OnRun = func(context.Context, render.Invocation) error {
		close(entered)
		<-unblock
		return nil
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := h.orch.Run(context.Background())
		firstErr <- err
	}()
	<-entered

	if _, err := h.orch.Run(context.Background()); !errors.Is(err, batch.ErrAlreadyRunning) {
		t.Fatalf("second Run: expected ErrAlreadyRunning, got %v", err)
	}
	if _, err := h.orch.RenderOne(context.Background(), filepath.Join(h.cfg.Paths.WorkDir, "a.json"), false); !errors.Is(err, batch.ErrAlreadyRunning) {
		t.Fatalf("RenderOne: expected ErrAlreadyRunning, got %v", err)
	}
	other := flock.New(h.cfg.BatchLockPath())
	if locked, err := other.TryLock(); err != nil || locked {
		t.Fatalf("batch lock released while the first run was active (locked=%v err=%v)", locked, err)
	}

	close(unblock)
	if err := <-firstErr; err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(h.backend.Runs()) != 1 {
		t.Fatalf("expected one engine launch, got %d", len(h.backend.Runs()))
	}

	h.backend.OnRun = nil
	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run after release: %v", err)
	}
}

func TestRunReportsStateTransitions(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.ExitCodes = map[string]int{"c.mp4": 1}
	h.backend.Errs = map[string]error{"d.mp4": errors.New("exec format error")}
	h.writeScripts(t, "a.json", "c.json", "d.json")
	testsupport.WriteText(t, filepath.Join(h.cfg.Paths.WorkDir, "bad.json"), "[]")

	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var got []string
	for _, e := range h.events {
		got = append(got, string(e.State)+":"+e.JobID)
	}
	want := []string{
		"discovering:",
		"rendering:a.json", "committing:a.json",
		"skipping:bad.json",
		"rendering:c.json", "skipping:c.json",
		"rendering:d.json", "skipping:d.json",
		"idle:",
	}
	if !equalStrings(got, want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

func TestRunStagesNarratedDocument(t *testing.T) {
	h := newHarness(t, nil)
	h.writeScripts(t, "a.json")

	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	runs := h.backend.Runs()
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	staged, err := script.Parse(runs[0].Staged)
	if err != nil {
		t.Fatalf("parse staged: %v", err)
	}
	code := staged.Sections[0].Prepared()
	if code == nil || len(code.Cues) != 1 || code.Cues[0].Audio == "" {
		t.Fatalf("expected narrated code section, got %+v", code)
	}
	if code.HoldSeconds != 5 {
		t.Fatalf("expected 2s audio + 3s padding, got %v", code.HoldSeconds)
	}
	if !strings.HasPrefix(code.Cues[0].Audio, h.cfg.Paths.CacheDir) {
		t.Fatalf("audio outside cache dir: %q", code.Cues[0].Audio)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.ExitCodes = map[string]int{"b.mp4": 2}
	h.writeScripts(t, "a.json", "b.json")

	summary, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	runs, err := h.history.Runs(context.Background(), 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID || runs[0].Status != history.RunCompleted {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Rendered != 1 || runs[0].Failed != 1 || runs[0].Pending != 2 {
		t.Fatalf("unexpected run counters: %+v", runs[0])
	}
	last, err := h.history.LastAttempts(context.Background())
	if err != nil {
		t.Fatalf("LastAttempts: %v", err)
	}
	b := last["b.json"]
	if b.Status != history.AttemptFailed || b.ExitCode == nil || *b.ExitCode != 2 || b.LogPath == "" {
		t.Fatalf("unexpected b.json attempt: %+v", b)
	}
}

func TestRenderOneIgnoresLedger(t *testing.T) {
	h := newHarness(t, nil)
	h.writeScripts(t, "a.json")
	if err := h.ledger.Commit("a.json"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	path := filepath.Join(h.cfg.Paths.WorkDir, "a.json")

	result, err := h.orch.RenderOne(context.Background(), path, false)
	if err != nil {
		t.Fatalf("RenderOne: %v", err)
	}
	if result.Outcome != batch.OutcomeRendered || len(h.backend.Runs()) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	h.writeScripts(t, "b.json")
	if _, err := h.orch.RenderOne(context.Background(), filepath.Join(h.cfg.Paths.WorkDir, "b.json"), true); err != nil {
		t.Fatalf("RenderOne with commit: %v", err)
	}
	if _, ok := h.done(t)["b.json"]; !ok {
		t.Fatal("expected b.json committed")
	}
}

type recordingNotifier struct {
	summaries []batch.Summary
	errs      []error
}

func (n *recordingNotifier) RunFinished(_ context.Context, summary batch.Summary, _ time.Duration, runErr error) {
	n.summaries = append(n.summaries, summary)
	n.errs = append(n.errs, runErr)
}

func TestRunNotifiesOnlyWhenWorkWasPending(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newHarness(t, func(bc *batch.Config) {
		bc.Notifier = notifier
	})
	h.backend.ExitCodes = map[string]int{"b.mp4": 1}
	h.writeScripts(t, "a.json", "b.json")

	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.summaries) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.summaries))
	}
	got := notifier.summaries[0]
	if got.Count(batch.OutcomeRendered) != 1 || got.Count(batch.OutcomeFailed) != 1 || notifier.errs[0] != nil {
		t.Fatalf("unexpected notified summary: %+v err=%v", got, notifier.errs[0])
	}

	h.backend.ExitCodes = nil
	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("idle Run: %v", err)
	}
	if len(notifier.summaries) != 2 {
		t.Fatalf("expected idle run to stay silent, got %d notifications", len(notifier.summaries))
	}
}

func TestRunNotifiesHalt(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newHarness(t, func(bc *batch.Config) {
		bc.Ledger = unwritableLedger{}
		bc.Notifier = notifier
	})
	h.writeScripts(t, "a.json")

	if _, err := h.orch.Run(context.Background()); err == nil {
		t.Fatal("expected halt")
	}
	if len(notifier.errs) != 1 || !errors.Is(notifier.errs[0], batch.ErrLedgerUnwritable) {
		t.Fatalf("expected halt notification, got %v", notifier.errs)
	}
	if !notifier.summaries[0].Halted {
		t.Fatal("expected halted summary")
	}
}
