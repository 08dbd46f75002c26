package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/upkeep-hq/upkeep/internal/notify"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []int64
	failFor  map[int64]bool
	lastBody string
}

func (s *recordingSender) Send(_ context.Context, recipient int64, _, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[recipient] {
		return errors.New("delivery refused")
	}
	s.sent = append(s.sent, recipient)
	s.lastBody = body
	return nil
}

func TestDispatchTaskCarriesAtMostOnceOptions(t *testing.T) {
	task, err := NewDispatchTask(notify.Notification{
		Recipients: []int64{1},
		Template:   notify.TemplateRequestCreated,
	})
	require.NoError(t, err)
	require.Equal(t, TaskTypeNotifyDispatch, task.Type())
}

func TestDispatchHandlerFansOut(t *testing.T) {
	sender := &recordingSender{}
	handler := NewDispatchHandler(sender, nil, slog.Default())

	task, err := NewDispatchTask(notify.Notification{
		Recipients: []int64{10, 20},
		Ops:        true,
		Template:   notify.TemplateRequestTransition,
		Context:    map[string]any{"request_id": "r-1", "from": "NEW", "to": "ACCEPTED"},
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))

	sort.Slice(sender.sent, func(i, j int) bool { return sender.sent[i] < sender.sent[j] })
	require.Equal(t, []int64{opsRecipient, 10, 20}, sender.sent)
	require.Contains(t, sender.lastBody, "r-1")
}

func TestDispatchHandlerIsolatesFailedRecipients(t *testing.T) {
	sender := &recordingSender{failFor: map[int64]bool{10: true}}
	handler := NewDispatchHandler(sender, nil, slog.Default())

	task, err := NewDispatchTask(notify.Notification{
		Recipients: []int64{10, 20},
		Template:   notify.TemplateShiftStarted,
		Context:    map[string]any{"actor_id": int64(20)},
	})
	require.NoError(t, err)

	// The task succeeds even when one recipient fails; delivery stays
	// at-most-once with no retry.
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, []int64{20}, sender.sent)
}

func TestDispatchHandlerSkipsMalformedPayload(t *testing.T) {
	handler := NewDispatchHandler(&recordingSender{}, nil, slog.Default())

	err := handler(context.Background(), asynq.NewTask(TaskTypeNotifyDispatch, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
