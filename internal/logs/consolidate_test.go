package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"manimate/internal/logs"
	"manimate/internal/testsupport"
)

func TestConsolidateAppendsAndDeletes(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteText(t, filepath.Join(dir, "combined_logs.txt"), "previous\n")
	testsupport.WriteText(t, filepath.Join(dir, "manim_log_b_20240101-000001.txt"), "second\n")
	testsupport.WriteText(t, filepath.Join(dir, "manim_log_a_20240101-000000.txt"), "first\n")
	testsupport.WriteText(t, filepath.Join(dir, "manimate.log"), "{}\n")

	result, err := logs.Consolidate(context.Background(), dir, "combined_logs.txt", "")
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Consolidated != 2 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	combined, err := os.ReadFile(filepath.Join(dir, "combined_logs.txt"))
	if err != nil {
		t.Fatalf("read combined: %v", err)
	}
	want := "previous\n" +
		"\n--- manim_log_a_20240101-000000.txt ---\nfirst\n" +
		"\n--- manim_log_b_20240101-000001.txt ---\nsecond\n"
	if string(combined) != want {
		t.Fatalf("combined log = %q, want %q", combined, want)
	}
	for _, name := range result.Appended {
		if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err=%v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "manimate.log")); err != nil {
		t.Fatalf("non-matching log should remain: %v", err)
	}
}

func TestConsolidateSkipsActiveLog(t *testing.T) {
	dir := t.TempDir()
	active := testsupport.WriteText(t, filepath.Join(dir, "manim_log_live_20240101-000000.txt"), "still rendering\n")
	testsupport.WriteText(t, filepath.Join(dir, "manim_log_done_20240101-000000.txt"), "finished\n")

	lock := flock.New(active)
	if err := lock.Lock(); err != nil {
		t.Fatalf("lock active log: %v", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	result, err := logs.Consolidate(context.Background(), dir, "combined_logs.txt", "*.txt")
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Consolidated != 1 {
		t.Fatalf("expected one consolidated log, got %+v", result)
	}
	if len(result.Active) != 1 || result.Active[0] != filepath.Base(active) {
		t.Fatalf("expected active log reported, got %v", result.Active)
	}
	data, err := os.ReadFile(active)
	if err != nil {
		t.Fatalf("active log was removed: %v", err)
	}
	if string(data) != "still rendering\n" {
		t.Fatalf("active log modified: %q", data)
	}
	combined, err := os.ReadFile(filepath.Join(dir, "combined_logs.txt"))
	if err != nil {
		t.Fatalf("read combined: %v", err)
	}
	if strings.Contains(string(combined), "still rendering") {
		t.Fatal("active log content leaked into combined log")
	}
}

func TestConsolidateCollectsPerFileErrors(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	unreadable := testsupport.WriteText(t, filepath.Join(dir, "a.txt"), "secret\n")
	testsupport.WriteText(t, filepath.Join(dir, "b.txt"), "fine\n")
	if err := os.Chmod(unreadable, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(unreadable, 0o644) })

	result, err := logs.Consolidate(context.Background(), dir, "combined_logs.txt", "*.txt")
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Consolidated != 1 {
		t.Fatalf("expected b.txt consolidated, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].File != "a.txt" {
		t.Fatalf("expected error for a.txt, got %+v", result.Errors)
	}
	if _, err := os.Stat(unreadable); err != nil {
		t.Fatalf("failed log should remain: %v", err)
	}
}

func TestConsolidateMissingDirIsEmpty(t *testing.T) {
	result, err := logs.Consolidate(context.Background(), filepath.Join(t.TempDir(), "missing"), "combined_logs.txt", "")
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Consolidated != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestConsolidateRejectsBadPattern(t *testing.T) {
	if _, err := logs.Consolidate(context.Background(), t.TempDir(), "combined_logs.txt", "["); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestConsolidateStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteText(t, filepath.Join(dir, "a.txt"), "a\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := logs.Consolidate(ctx, dir, "combined_logs.txt", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Consolidated != 0 {
		t.Fatalf("expected nothing consolidated, got %+v", result)
	}
}
