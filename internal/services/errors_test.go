package services_test

import (
	"errors"
	"strings"
	"testing"

	"manimate/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "render", "wait", "engine exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "wait", "engine exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestDetailsClassification(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{services.Wrap(services.ErrValidation, "script", "parse", "bad json", nil), "validation"},
		{services.Wrap(services.ErrTimeout, "render", "wait", "", nil), "timeout"},
		{services.Wrap(services.ErrNotFound, "render", "start", "", nil), "not_found"},
		{errors.New("plain"), "transient"},
	}
	for _, tt := range tests {
		details := services.Details(tt.err)
		if details.Kind != tt.kind {
			t.Fatalf("Details(%v).Kind = %q, want %q", tt.err, details.Kind, tt.kind)
		}
		if details.Hint == "" {
			t.Fatalf("expected hint for %v", tt.err)
		}
	}
	if got := services.Details(nil); got.Kind != "" {
		t.Fatalf("expected empty details for nil, got %+v", got)
	}
}
