// Package jobs wires background notification delivery through Asynq. The
// lifecycle services enqueue fire-and-forget dispatch tasks; the worker fans
// them out per recipient.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/upkeep-hq/upkeep/internal/notify"
)

const (
	// QueueNotifications is the queue carrying notification dispatch tasks.
	QueueNotifications = "notifications"
	// TaskTypeNotifyDispatch is the task type for notification delivery.
	TaskTypeNotifyDispatch = "notify:dispatch"
)

// NewDispatchTask packages a notification into an Asynq task.
func NewDispatchTask(n notify.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	// MaxRetry 0 keeps delivery at-most-once. A failed send is logged and
	// dropped rather than retried into a duplicate.
	return asynq.NewTask(TaskTypeNotifyDispatch, data, asynq.MaxRetry(0), asynq.Queue(QueueNotifications)), nil
}
