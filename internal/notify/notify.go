// Package notify delivers human-readable messages about lifecycle events to
// affected actors and the operations channel. Dispatch is fire-and-forget:
// a failed or lost notification never affects the mutation that triggered it.
package notify

import (
	"context"
)

// Template keys rendered by the worker.
const (
	TemplateRequestCreated    = "request.created"
	TemplateRequestTransition = "request.transition"
	TemplateShiftStarted      = "shift.started"
	TemplateShiftEnded        = "shift.ended"
	TemplateShiftForceEnded   = "shift.force_ended"
)

// Notification is one fan-out: a template plus context rendered per
// recipient. Ops additionally routes the message to the operations channel.
type Notification struct {
	Recipients []int64        `json:"recipients"`
	Ops        bool           `json:"ops"`
	Template   string         `json:"template"`
	Context    map[string]any `json:"context,omitempty"`
}

// Dispatcher hands a notification off for asynchronous delivery.
// Implementations must be safe for concurrent use and must never block on
// downstream delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Discard is a Dispatcher that drops everything. Useful in tests and in
// tools that run without a queue.
type Discard struct{}

// Dispatch implements Dispatcher.
func (Discard) Dispatch(context.Context, Notification) error { return nil }
