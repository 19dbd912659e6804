package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"manimate/internal/config"
)

const userAgent = "manimate/0.1.0"

// Event names a notification-worthy batch milestone.
type Event string

const (
	EventBatchCompleted Event = "batch_completed"
	EventBatchHalted    Event = "batch_halted"
	EventJobFailed      Event = "job_failed"
	EventTest           Event = "test"
)

// Payload carries the values an event message is built from.
type Payload map[string]string

// Service publishes batch events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured. Without one a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, data Payload) (payload, bool) {
	value := func(key string) string { return strings.TrimSpace(data[key]) }
	switch event {
	case EventBatchCompleted:
		rendered, failed := value("rendered"), value("failed")
		if rendered == "" {
			rendered = "0"
		}
		elapsed := value("elapsed")
		if elapsed == "" {
			elapsed = "0s"
		}
		if failed == "" || failed == "0" {
			return payload{
				title:   "manimate - Batch Complete",
				message: fmt.Sprintf("Rendered %s video(s) in %s", rendered, elapsed),
				tags:    []string{"manimate", "batch", "completed"},
			}, true
		}
		return payload{
			title:   "manimate - Batch Complete (with failures)",
			message: fmt.Sprintf("Rendered %s, failed %s in %s", rendered, failed, elapsed),
			tags:    []string{"manimate", "batch", "failed"},
		}, true
	case EventBatchHalted:
		reason := value("error")
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "manimate - Batch Halted",
			message:  "Batch halted: " + reason,
			tags:     []string{"manimate", "error", "alert"},
			priority: "high",
		}, true
	case EventJobFailed:
		message := "Render failed: " + value("script")
		if code := value("exit_code"); code != "" {
			message += fmt.Sprintf(" (exit %s)", code)
		}
		if log := value("log"); log != "" {
			message += "\nLog: " + log
		}
		return payload{
			title:   "manimate - Render Failed",
			message: message,
			tags:    []string{"manimate", "render", "failed"},
		}, true
	case EventTest:
		return payload{
			title:    "manimate - Test",
			message:  "Notification system test",
			tags:     []string{"manimate", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
