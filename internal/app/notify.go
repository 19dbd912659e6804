package app

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"manimate/internal/batch"
	"manimate/internal/logging"
	"manimate/internal/notifications"
)

// batchNotifier turns run summaries into ntfy events. Delivery failures are
// logged and never affect the batch.
type batchNotifier struct {
	svc      notifications.Service
	failures bool
	logger   *slog.Logger
}

func (n batchNotifier) RunFinished(ctx context.Context, summary batch.Summary, elapsed time.Duration, runErr error) {
	if summary.Halted && runErr != nil {
		n.publish(ctx, notifications.EventBatchHalted, notifications.Payload{"error": runErr.Error()})
	}
	if n.failures {
		for _, job := range summary.Jobs {
			if job.Outcome != batch.OutcomeFailed {
				continue
			}
			payload := notifications.Payload{"script": job.JobID, "log": job.LogPath}
			if job.ExitCode >= 0 {
				payload["exit_code"] = strconv.Itoa(job.ExitCode)
			}
			n.publish(ctx, notifications.EventJobFailed, payload)
		}
	}
	if summary.Halted {
		return
	}
	n.publish(ctx, notifications.EventBatchCompleted, notifications.Payload{
		"rendered": strconv.Itoa(summary.Count(batch.OutcomeRendered)),
		"failed":   strconv.Itoa(summary.Count(batch.OutcomeFailed)),
		"elapsed":  elapsed.Round(time.Second).String(),
	})
}

func (n batchNotifier) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := n.svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(n.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}
