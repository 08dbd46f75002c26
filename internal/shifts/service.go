package shifts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/upkeep-hq/upkeep/internal/actors"
	"github.com/upkeep-hq/upkeep/internal/audit"
	"github.com/upkeep-hq/upkeep/internal/lifecycle"
	"github.com/upkeep-hq/upkeep/internal/notify"
)

// Service implements the shift tracker: bounded work sessions gating
// executor eligibility for field-status transitions.
type Service struct {
	repo     Repository
	audit    audit.Sink
	notifier notify.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, sink audit.Sink, notifier notify.Dispatcher, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Service{repo: repo, audit: sink, notifier: notifier, logger: logger, now: time.Now}
}

// Start opens a new shift for the acting party. The active role must be
// field-capable, and the storage-level uniqueness constraint guarantees at
// most one active shift per actor even under concurrent starts.
func (s *Service) Start(ctx context.Context, auth actors.AuthContext) (*Shift, error) {
	if auth.Blocked() {
		return nil, lifecycle.NewError(lifecycle.CodeActorBlocked, "blocked actors cannot start shifts")
	}
	if !auth.Roles.FieldCapable() {
		return nil, lifecycle.Errorf(lifecycle.CodeRoleNotEligible,
			"active role %q cannot hold shifts", string(auth.ActiveRole()))
	}

	shift, err := s.repo.Create(ctx, auth.ActorID, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrActiveExists) {
			return nil, lifecycle.NewError(lifecycle.CodeAlreadyActive, "a shift is already active for this actor")
		}
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not start shift")
	}

	s.record(ctx, audit.Entry{
		ActorID:     auth.ActorID,
		Action:      audit.ActionShiftStart,
		SubjectKind: audit.SubjectShift,
		SubjectID:   shift.ID.String(),
		Details:     map[string]any{"start_time": shift.StartTime},
	})
	s.dispatch(ctx, notify.Notification{
		Recipients: []int64{auth.ActorID},
		Ops:        true,
		Template:   notify.TemplateShiftStarted,
		Context:    map[string]any{"actor_id": auth.ActorID, "shift_id": shift.ID.String()},
	})
	return shift, nil
}

// End completes the acting party's own active shift.
func (s *Service) End(ctx context.Context, auth actors.AuthContext, notes string) (*Shift, error) {
	return s.endShift(ctx, auth.ActorID, auth.ActorID, notes, false)
}

// ForceEnd completes another actor's active shift. Restricted to
// manager/admin active roles; the audit entry is flagged as forced.
func (s *Service) ForceEnd(ctx context.Context, manager actors.AuthContext, targetActorID int64, notes string) (*Shift, error) {
	role := manager.ActiveRole()
	if role != actors.RoleManager && role != actors.RoleAdmin {
		return nil, lifecycle.NewError(lifecycle.CodeForbidden, "only managers and administrators may force-end shifts")
	}
	return s.endShift(ctx, manager.ActorID, targetActorID, notes, true)
}

func (s *Service) endShift(ctx context.Context, actingID, targetID int64, notes string, forced bool) (*Shift, error) {
	active, err := s.repo.GetActiveByActor(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, lifecycle.NewError(lifecycle.CodeNoActiveShift, "no active shift for this actor")
		}
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not load active shift")
	}

	ended, err := s.repo.End(ctx, active.ID, s.now().UTC(), notes)
	if err != nil {
		// Lost a race against another end of the same shift.
		if errors.Is(err, ErrNotFound) {
			return nil, lifecycle.NewError(lifecycle.CodeNoActiveShift, "no active shift for this actor")
		}
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not end shift")
	}

	action := audit.ActionShiftEnd
	template := notify.TemplateShiftEnded
	recipients := []int64{targetID}
	if forced {
		action = audit.ActionShiftForceEnd
		template = notify.TemplateShiftForceEnded
	}
	s.record(ctx, audit.Entry{
		ActorID:     actingID,
		Action:      action,
		SubjectKind: audit.SubjectShift,
		SubjectID:   ended.ID.String(),
		Details:     map[string]any{"target_actor_id": targetID, "forced": forced, "end_time": ended.EndTime},
	})
	s.dispatch(ctx, notify.Notification{
		Recipients: recipients,
		Ops:        true,
		Template:   template,
		Context:    map[string]any{"actor_id": targetID, "shift_id": ended.ID.String()},
	})
	return ended, nil
}

// IsActive reports whether the actor currently holds an active shift. This
// is the eligibility predicate consumed by the request lifecycle.
func (s *Service) IsActive(ctx context.Context, actorID int64) (bool, error) {
	return s.repo.HasActive(ctx, actorID)
}

// ListActive returns every currently active shift.
func (s *Service) ListActive(ctx context.Context) ([]Shift, error) {
	return s.repo.ListActive(ctx)
}

// ListByActor returns an actor's shift history, newest first.
func (s *Service) ListByActor(ctx context.Context, actorID int64, limit, offset int) ([]Shift, error) {
	return s.repo.ListByActor(ctx, actorID, limit, offset)
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("audit write failed", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func (s *Service) dispatch(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Dispatch(ctx, n); err != nil && s.logger != nil {
		s.logger.Warn("notification dispatch failed", slog.String("template", n.Template), slog.Any("error", err))
	}
}
