package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/upkeep-hq/upkeep/internal/jobs"
	"github.com/upkeep-hq/upkeep/internal/notify"
)

// opsRecipient is the pseudo-recipient for the operations channel.
const opsRecipient int64 = 0

// QueueDispatcher enqueues notifications for asynchronous delivery. It
// satisfies notify.Dispatcher so lifecycle services stay unaware of Asynq.
type QueueDispatcher struct {
	client *Client
	logger *slog.Logger
}

// NewQueueDispatcher constructs a QueueDispatcher.
func NewQueueDispatcher(client *Client, logger *slog.Logger) *QueueDispatcher {
	return &QueueDispatcher{client: client, logger: logger}
}

// Dispatch enqueues the notification. Failures are returned to the caller,
// which logs and moves on; delivery never blocks a lifecycle operation.
func (d *QueueDispatcher) Dispatch(ctx context.Context, n notify.Notification) error {
	_, err := d.client.EnqueueDispatch(ctx, n)
	return err
}

// Sender delivers one rendered notification to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient int64, template, body string) error
}

// LogSender writes notifications to the structured log. It stands in for a
// push or messenger integration and keeps delivery observable in development.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, recipient int64, template, body string) error {
	s.Logger.Info("notification",
		slog.Int64("recipient", recipient),
		slog.String("template", template),
		slog.String("body", body))
	return nil
}

// maxSendConcurrency bounds per-task fan-out.
const maxSendConcurrency = 4

// NewDispatchHandler builds the worker-side handler for dispatch tasks.
// Recipients are isolated from each other: one failed send does not stop the
// rest, and the task itself never retries.
func NewDispatchHandler(sender Sender, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeNotifyDispatch)
		var n notify.Notification
		if err := json.Unmarshal(t.Payload(), &n); err != nil {
			logger.Error("malformed notification payload", slog.Any("error", err))
			_ = tracker.End(err)
			return asynq.SkipRetry
		}

		body := notify.Render(n.Template, n.Context)
		recipients := n.Recipients
		if n.Ops {
			recipients = append(recipients, opsRecipient)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxSendConcurrency)
		for _, recipient := range recipients {
			recipient := recipient
			g.Go(func() error {
				err := sender.Send(gctx, recipient, n.Template, body)
				metrics.AddSend(n.Template, err != nil)
				if err != nil {
					logger.Warn("notification send failed",
						slog.Int64("recipient", recipient),
						slog.String("template", n.Template),
						slog.Any("error", err))
				}
				return nil
			})
		}
		_ = g.Wait()
		return tracker.End(nil)
	}
}
