package app_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"manimate/internal/app"
	"manimate/internal/batch"
	"manimate/internal/notifications"
	"manimate/internal/testsupport"
)

func TestBuildRunsBatchEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory(true))
	testsupport.WriteScript(t, cfg.Paths.WorkDir, "loops.json", testsupport.SampleDocument())

	backend := &testsupport.FakeBackend{}
	var states []batch.State
	rt, err := app.Build(cfg, nil, app.Options{
		Backend:     backend,
		Synthesizer: &testsupport.FakeSynthesizer{},
		Prober:      &testsupport.FakeProber{Seconds: 2},
		Observer:    func(ev batch.Event) { states = append(states, ev.State) },
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if rt.History == nil {
		t.Fatal("expected history store when enabled")
	}

	summary, err := rt.Orchestrator.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := summary.IDs(batch.OutcomeRendered); len(got) != 1 || got[0] != "loops.json" {
		t.Fatalf("unexpected rendered ids: %v", got)
	}
	done, err := rt.Ledger.IsDone("loops.json")
	if err != nil || !done {
		t.Fatalf("expected loops.json committed, done=%v err=%v", done, err)
	}
	if len(states) == 0 {
		t.Fatal("expected observer events")
	}

	runs := backend.Runs()
	if len(runs) != 1 {
		t.Fatalf("expected one engine run, got %d", len(runs))
	}
	if runs[0].Invocation.ScriptFile != cfg.Paths.StagingFile {
		t.Fatalf("unexpected staging path: %q", runs[0].Invocation.ScriptFile)
	}

	stats, err := rt.Cache.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Artifacts == 0 {
		t.Fatal("expected narration audio in cache")
	}

	attempts, err := rt.History.Attempts(context.Background(), "loops.json", 10)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected one recorded attempt, got %d", len(attempts))
	}
}

func TestBuildWithoutNarrationSkipsSynthesis(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutNarration(), testsupport.WithHistory(false))
	testsupport.WriteScript(t, cfg.Paths.WorkDir, "a.json", testsupport.SampleDocument())

	synth := &testsupport.FakeSynthesizer{}
	rt, err := app.Build(cfg, nil, app.Options{
		Backend:     &testsupport.FakeBackend{},
		Synthesizer: synth,
		Prober:      &testsupport.FakeProber{Seconds: 1},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if rt.History != nil {
		t.Fatal("expected no history store when disabled")
	}
	if _, err := rt.Orchestrator.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls := synth.Calls(); len(calls) != 0 {
		t.Fatalf("expected no synthesis, got %d calls", len(calls))
	}
}

func TestBuildToleratesUnavailableHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory(true))
	// A regular file where the state directory should be makes the database unopenable.
	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocked")
	testsupport.WriteText(t, blocker, "x")
	cfg.Paths.StateDir = filepath.Join(blocker, "state")

	rt, err := app.Build(cfg, nil, app.Options{
		Backend:     &testsupport.FakeBackend{},
		Synthesizer: &testsupport.FakeSynthesizer{},
		Prober:      &testsupport.FakeProber{Seconds: 1},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()
	if rt.History != nil {
		t.Fatal("expected history to be disabled after open failure")
	}
}

func TestCleanupLogsPrunesApplicationLogsOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.RetentionDays = 1

	old := time.Now().Add(-72 * time.Hour)
	appLog := testsupport.WriteText(t, filepath.Join(cfg.Paths.LogDir, "manimate.log"), "{}")
	renderLog := testsupport.WriteText(t, filepath.Join(cfg.Paths.LogDir, "manim_log_a_20240101-000000.txt"), "engine")
	for _, path := range []string{appLog, renderLog} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if removed := app.CleanupLogs(nil, cfg); removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if _, err := os.Stat(renderLog); err != nil {
		t.Fatalf("render log should survive retention: %v", err)
	}
	if _, err := os.Stat(appLog); !os.IsNotExist(err) {
		t.Fatalf("expected application log removed, stat err=%v", err)
	}
}

func TestBuildRequiresConfig(t *testing.T) {
	if _, err := app.Build(nil, nil, app.Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestLogDependencySnapshotWarnsOnMissingEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutNarration())
	cfg.Render.Binary = filepath.Join(testsupport.BaseDir(cfg), "no-such-manim")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	app.LogDependencySnapshot(logger, cfg)

	out := buf.String()
	if !strings.Contains(out, `"event_type":"dependency_snapshot"`) {
		t.Fatalf("expected snapshot record, got %s", out)
	}
	if !strings.Contains(out, `"event_type":"dependency_missing"`) || !strings.Contains(out, "no-such-manim") {
		t.Fatalf("expected missing engine warning, got %s", out)
	}
}

type capturedNotification struct {
	event   notifications.Event
	payload notifications.Payload
}

type fakeNotifications struct {
	sent []capturedNotification
}

func (f *fakeNotifications) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	f.sent = append(f.sent, capturedNotification{event: event, payload: payload})
	return nil
}

func TestBuildPublishesBatchOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutNarration(), testsupport.WithHistory(false))
	cfg.Notifications.NotifyFailures = true
	testsupport.WriteScript(t, cfg.Paths.WorkDir, "a.json", testsupport.SampleDocument())
	testsupport.WriteScript(t, cfg.Paths.WorkDir, "b.json", testsupport.SampleDocument())

	notifier := &fakeNotifications{}
	rt, err := app.Build(cfg, nil, app.Options{
		Backend:  &testsupport.FakeBackend{ExitCodes: map[string]int{"a.mp4": 3}},
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if _, err := rt.Orchestrator.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("expected failure and summary notifications, got %+v", notifier.sent)
	}
	failed := notifier.sent[0]
	if failed.event != notifications.EventJobFailed || failed.payload["script"] != "a.json" || failed.payload["exit_code"] != "3" {
		t.Fatalf("unexpected failure notification: %+v", failed)
	}
	summary := notifier.sent[1]
	if summary.event != notifications.EventBatchCompleted || summary.payload["rendered"] != "1" || summary.payload["failed"] != "1" {
		t.Fatalf("unexpected summary notification: %+v", summary)
	}

	if _, err := rt.Orchestrator.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(notifier.sent) != 3 {
		t.Fatalf("expected one more summary for the retried script, got %d", len(notifier.sent))
	}
}
