package requests

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/upkeep-hq/upkeep/internal/actors"
	"github.com/upkeep-hq/upkeep/internal/audit"
	"github.com/upkeep-hq/upkeep/internal/lifecycle"
	"github.com/upkeep-hq/upkeep/internal/notify"
)

// ShiftGate answers whether an actor currently holds an active shift.
// Executors may only move requests into field statuses while on shift.
type ShiftGate interface {
	IsActive(ctx context.Context, actorID int64) (bool, error)
}

// Service implements request submission and the transition operation.
type Service struct {
	repo     Repository
	shifts   ShiftGate
	audit    audit.Sink
	notifier notify.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, shifts ShiftGate, sink audit.Sink, notifier notify.Dispatcher, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Service{repo: repo, shifts: shifts, audit: sink, notifier: notifier, logger: logger, now: time.Now}
}

// Create submits a new request. Any approved, non-blocked actor may submit
// regardless of role; the request starts in NEW with no executor.
func (s *Service) Create(ctx context.Context, auth actors.AuthContext, input CreateInput) (*Request, error) {
	if auth.Blocked() {
		return nil, lifecycle.NewError(lifecycle.CodeActorBlocked, "blocked actors cannot submit requests")
	}
	if !input.Category.Valid() {
		return nil, lifecycle.Errorf(lifecycle.CodeValidation, "unknown category %q", string(input.Category))
	}
	if !input.Urgency.Valid() {
		return nil, lifecycle.Errorf(lifecycle.CodeValidation, "unknown urgency %q", string(input.Urgency))
	}
	address := strings.TrimSpace(input.AddressRef)
	if utf8.RuneCountInString(address) < 10 {
		return nil, lifecycle.NewError(lifecycle.CodeValidation, "address reference must be at least 10 characters")
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) < 10 {
		return nil, lifecycle.NewError(lifecycle.CodeValidation, "description must be at least 10 characters")
	}

	req := Request{
		ID:          uuid.New(),
		SubmitterID: auth.ActorID,
		Category:    input.Category,
		AddressRef:  address,
		Description: description,
		Urgency:     input.Urgency,
		Status:      StatusNew,
		CreatedAt:   s.now().UTC(),
	}
	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not create request")
	}

	s.record(ctx, audit.Entry{
		ActorID:     auth.ActorID,
		Action:      audit.ActionRequestCreate,
		SubjectKind: audit.SubjectRequest,
		SubjectID:   created.ID.String(),
		Details: map[string]any{
			"category": string(created.Category),
			"urgency":  string(created.Urgency),
		},
	})
	s.dispatch(ctx, notify.Notification{
		Recipients: []int64{created.SubmitterID},
		Ops:        true,
		Template:   notify.TemplateRequestCreated,
		Context: map[string]any{
			"request_id": created.ID.String(),
			"category":   string(created.Category),
			"urgency":    string(created.Urgency),
			"address":    created.AddressRef,
		},
	})
	return created, nil
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, lifecycle.NewError(lifecycle.CodeNotFound, "request not found")
		}
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not load request")
	}
	return req, nil
}

// List returns requests matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	out, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not list requests")
	}
	return out, nil
}

// Transition moves a request toward target on behalf of the acting party.
// The checks run in a fixed order so the failure code is deterministic:
// existence, blocked actor, separation of duties, the no-op annotation path,
// terminal guard, matrix, role eligibility, then the executor shift gate.
// Passing target equal to the current status appends notes without any other
// check beyond separation of duties.
func (s *Service) Transition(ctx context.Context, auth actors.AuthContext, id uuid.UUID, target Status, notes string) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, lifecycle.NewError(lifecycle.CodeNotFound, "request not found")
		}
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not load request")
	}
	if auth.Blocked() {
		return nil, lifecycle.NewError(lifecycle.CodeActorBlocked, "blocked actors cannot act on requests")
	}
	if !target.Valid() {
		return nil, lifecycle.Errorf(lifecycle.CodeValidation, "unknown status %q", string(target))
	}

	// Separation of duties: a submitter never performs working statuses on
	// their own request, whatever roles they hold. Applies to the annotation
	// path too.
	if req.SubmitterID == auth.ActorID && target.Working() {
		return nil, lifecycle.NewError(lifecycle.CodeForbidden, "submitters cannot perform working statuses on their own requests")
	}

	now := s.now().UTC()
	previous := req.Status

	if target == req.Status {
		return s.annotate(ctx, auth, *req, notes, now)
	}

	if req.Status.Terminal() {
		return nil, lifecycle.Errorf(lifecycle.CodeInvalidTransition,
			"request is %s and accepts no further transitions", string(req.Status))
	}
	if !req.Status.CanTransitionTo(target) {
		return nil, lifecycle.Errorf(lifecycle.CodeInvalidTransition,
			"cannot move from %s to %s", string(req.Status), string(target))
	}
	if err := s.checkEligibility(ctx, auth, req, target); err != nil {
		return nil, err
	}

	next := *req
	next.Status = target
	next.Notes = appendNote(next.Notes, notes, auth.ActorID, now)
	if target == StatusInProgress && next.ExecutorID == nil {
		actorID := auth.ActorID
		next.ExecutorID = &actorID
	}
	if target == StatusDone {
		next.CompletedAt = &now
	}

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not persist transition")
	}

	s.record(ctx, audit.Entry{
		ActorID:     auth.ActorID,
		Action:      audit.ActionRequestTransition,
		SubjectKind: audit.SubjectRequest,
		SubjectID:   updated.ID.String(),
		Details: map[string]any{
			"from":  string(previous),
			"to":    string(updated.Status),
			"notes": strings.TrimSpace(notes),
		},
	})
	s.dispatch(ctx, notify.Notification{
		Recipients: transitionRecipients(updated),
		Ops:        true,
		Template:   notify.TemplateRequestTransition,
		Context: map[string]any{
			"request_id": updated.ID.String(),
			"from":       string(previous),
			"to":         string(updated.Status),
		},
	})
	return updated, nil
}

// annotate appends notes to a request without changing its status. Terminal
// and matrix checks deliberately do not apply; the audit trail still records
// the touch.
func (s *Service) annotate(ctx context.Context, auth actors.AuthContext, req Request, notes string, now time.Time) (*Request, error) {
	if strings.TrimSpace(notes) == "" {
		return &req, nil
	}
	req.Notes = appendNote(req.Notes, notes, auth.ActorID, now)
	updated, err := s.repo.Update(ctx, req)
	if err != nil {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not persist notes")
	}
	s.record(ctx, audit.Entry{
		ActorID:     auth.ActorID,
		Action:      audit.ActionRequestAnnotate,
		SubjectKind: audit.SubjectRequest,
		SubjectID:   updated.ID.String(),
		Details: map[string]any{
			"status": string(updated.Status),
			"notes":  strings.TrimSpace(notes),
		},
	})
	return updated, nil
}

// checkEligibility enforces the per-role transition rights and, for
// executors, the active-shift requirement on field statuses.
func (s *Service) checkEligibility(ctx context.Context, auth actors.AuthContext, req *Request, target Status) error {
	role := auth.ActiveRole()
	switch role {
	case actors.RoleManager, actors.RoleAdmin:
		return nil
	case actors.RoleExecutor:
		switch target {
		case StatusInProgress, StatusClarification, StatusProcurement, StatusDone:
		default:
			return lifecycle.Errorf(lifecycle.CodeForbidden,
				"executors cannot set status %s", string(target))
		}
		active, err := s.shifts.IsActive(ctx, auth.ActorID)
		if err != nil {
			return lifecycle.NewError(lifecycle.CodeStorage, "could not check shift state")
		}
		if !active {
			return lifecycle.NewError(lifecycle.CodeNotInShift, "an active shift is required for field statuses")
		}
		return nil
	case actors.RoleApplicant:
		if req.SubmitterID != auth.ActorID {
			return lifecycle.NewError(lifecycle.CodeForbidden, "applicants can only act on their own requests")
		}
		switch {
		case req.Status == StatusNew && target == StatusCancelled:
			return nil
		case req.Status == StatusDone && target == StatusConfirmed:
			return nil
		default:
			return lifecycle.Errorf(lifecycle.CodeForbidden,
				"applicants cannot move a request from %s to %s", string(req.Status), string(target))
		}
	default:
		return lifecycle.Errorf(lifecycle.CodeForbidden, "role %q cannot transition requests", string(role))
	}
}

// appendNote stamps a note with the acting party and time and appends it to
// the existing history. Notes are append-only.
func appendNote(existing, note string, actorID int64, at time.Time) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	line := at.Format(time.RFC3339) + " actor:" + strconv.FormatInt(actorID, 10) + " " + note
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

func transitionRecipients(req *Request) []int64 {
	recipients := []int64{req.SubmitterID}
	if req.ExecutorID != nil && *req.ExecutorID != req.SubmitterID {
		recipients = append(recipients, *req.ExecutorID)
	}
	return recipients
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
