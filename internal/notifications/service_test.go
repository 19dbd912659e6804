package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"manimate/internal/config"
	"manimate/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected noop service without a topic")
	}
	if err := svc.Publish(context.Background(), notifications.EventBatchCompleted, notifications.Payload{"rendered": "1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "batch completed",
			event:         notifications.EventBatchCompleted,
			payload:       notifications.Payload{"rendered": "3", "failed": "0", "elapsed": "2m5s"},
			expectTitle:   "manimate - Batch Complete",
			expectMessage: "Rendered 3 video(s) in 2m5s",
			expectTags:    "manimate,batch,completed",
		},
		{
			name:          "batch completed with failures",
			event:         notifications.EventBatchCompleted,
			payload:       notifications.Payload{"rendered": "2", "failed": "1", "elapsed": "40s"},
			expectTitle:   "manimate - Batch Complete (with failures)",
			expectMessage: "Rendered 2, failed 1 in 40s",
			expectTags:    "manimate,batch,failed",
		},
		{
			name:           "batch halted",
			event:          notifications.EventBatchHalted,
			payload:        notifications.Payload{"error": "completion ledger unwritable"},
			expectTitle:    "manimate - Batch Halted",
			expectMessage:  "Batch halted: completion ledger unwritable",
			expectTags:     "manimate,error,alert",
			expectPriority: "high",
		},
		{
			name:          "job failed",
			event:         notifications.EventJobFailed,
			payload:       notifications.Payload{"script": "loops.json", "exit_code": "2", "log": "/logs/manim_log_loops.txt"},
			expectTitle:   "manimate - Render Failed",
			expectMessage: "Render failed: loops.json (exit 2)\nLog: /logs/manim_log_loops.txt",
			expectTags:    "manimate,render,failed",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "manimate - Test",
			expectMessage:  "Notification system test",
			expectTags:     "manimate,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresUnknownEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for unknown event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.Event("job_started"), notifications.Payload{"script": "a.json"}); err != nil {
		t.Fatalf("expected no error for unknown event, got %v", err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
}
