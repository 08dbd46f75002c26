package actors

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/upkeep-hq/upkeep/internal/audit"
	"github.com/upkeep-hq/upkeep/internal/lifecycle"
)

// Service wraps actor business rules: registration on first contact,
// role administration and account status changes.
type Service struct {
	repo   Repository
	cache  *AuthCache
	audit  audit.Sink
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, cache *AuthCache, sink audit.Sink, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, audit: sink, logger: logger}
}

// Register returns the actor for the given external reference, creating it
// on first contact. Registration is idempotent.
func (s *Service) Register(ctx context.Context, externalRef, name string) (*Actor, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, lifecycle.NewError(lifecycle.CodeValidation, "external reference is required")
	}

	existing, err := s.repo.GetByExternalRef(ctx, externalRef)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not load actor")
	}

	actor, err := s.repo.Create(ctx, externalRef, strings.TrimSpace(name))
	if err != nil {
		// Lost a concurrent first-contact race; the row exists now.
		if errors.Is(err, ErrDuplicateRef) {
			return s.repo.GetByExternalRef(ctx, externalRef)
		}
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not create actor")
	}

	s.record(ctx, audit.Entry{
		ActorID:     actor.ID,
		Action:      audit.ActionActorRegister,
		SubjectKind: audit.SubjectActor,
		SubjectID:   strconv.FormatInt(actor.ID, 10),
		Details:     map[string]any{"external_ref": externalRef},
	})
	return actor, nil
}

// Get loads one actor.
func (s *Service) Get(ctx context.Context, id int64) (*Actor, error) {
	actor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, lifecycle.NewError(lifecycle.CodeNotFound, "actor not found")
		}
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not load actor")
	}
	return actor, nil
}

// List returns a page of actors.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Actor, error) {
	return s.repo.List(ctx, limit, offset)
}

// Resolve builds the authorization context for an acting party. The context
// is constructed from the persisted role data once per call chain and passed
// explicitly into the lifecycle operations.
func (s *Service) Resolve(ctx context.Context, actorID int64) (AuthContext, error) {
	if auth, ok := s.cache.Get(ctx, actorID); ok {
		return auth, nil
	}
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthContext{}, lifecycle.NewError(lifecycle.CodeNotFound, "actor not found")
		}
		return AuthContext{}, lifecycle.NewError(lifecycle.CodeStorage, "could not load actor")
	}
	auth := AuthContext{ActorID: actor.ID, Roles: actor.Roles, Status: actor.Status}
	s.cache.Set(ctx, auth)
	return auth, nil
}

// GrantRoles replaces an actor's role set. Restricted to manager/admin
// active roles.
func (s *Service) GrantRoles(ctx context.Context, grantor AuthContext, actorID int64, roles []Role) (*Actor, error) {
	if !isAdministrative(grantor.ActiveRole()) {
		return nil, lifecycle.NewError(lifecycle.CodeForbidden, "only managers and administrators may grant roles")
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, lifecycle.Errorf(lifecycle.CodeValidation, "unknown role %q", string(r))
		}
	}

	actor, err := s.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}

	updated := NewRoleSet(roles, actor.Roles.Active())
	if err := s.repo.UpdateRoles(ctx, actorID, updated); err != nil {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not update roles")
	}
	s.cache.Invalidate(ctx, actorID)

	s.record(ctx, audit.Entry{
		ActorID:     grantor.ActorID,
		Action:      audit.ActionActorRolesGrant,
		SubjectKind: audit.SubjectActor,
		SubjectID:   strconv.FormatInt(actorID, 10),
		Details:     map[string]any{"roles": updated.Roles(), "active": updated.Active()},
	})

	actor.Roles = updated
	return actor, nil
}

// SetActiveRole switches which of the actor's granted roles governs their
// permissions. The role must already be a member of the set.
func (s *Service) SetActiveRole(ctx context.Context, actorID int64, role Role) (*Actor, error) {
	actor, err := s.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Roles.Has(role) {
		return nil, lifecycle.Errorf(lifecycle.CodeForbidden, "role %q is not granted to this actor", string(role))
	}

	updated := actor.Roles.WithActive(role)
	if err := s.repo.UpdateRoles(ctx, actorID, updated); err != nil {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not update active role")
	}
	s.cache.Invalidate(ctx, actorID)

	s.record(ctx, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionActorActiveRole,
		SubjectKind: audit.SubjectActor,
		SubjectID:   strconv.FormatInt(actorID, 10),
		Details:     map[string]any{"active": role},
	})

	actor.Roles = updated
	return actor, nil
}

// Approve moves a pending actor to approved. Restricted to manager/admin.
func (s *Service) Approve(ctx context.Context, admin AuthContext, actorID int64) (*Actor, error) {
	return s.setStatus(ctx, admin, actorID, StatusApproved, audit.ActionActorApprove)
}

// Block blocks an actor. Blocked actors cannot create requests or act on
// them. Restricted to manager/admin.
func (s *Service) Block(ctx context.Context, admin AuthContext, actorID int64) (*Actor, error) {
	return s.setStatus(ctx, admin, actorID, StatusBlocked, audit.ActionActorBlock)
}

func (s *Service) setStatus(ctx context.Context, admin AuthContext, actorID int64, status Status, action string) (*Actor, error) {
	if !isAdministrative(admin.ActiveRole()) {
		return nil, lifecycle.NewError(lifecycle.CodeForbidden, "only managers and administrators may change actor status")
	}
	actor, err := s.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, actorID, status); err != nil {
		return nil, lifecycle.NewError(lifecycle.CodeStorage, "could not update actor status")
	}
	s.cache.Invalidate(ctx, actorID)

	s.record(ctx, audit.Entry{
		ActorID:     admin.ActorID,
		Action:      action,
		SubjectKind: audit.SubjectActor,
		SubjectID:   strconv.FormatInt(actorID, 10),
		Details:     map[string]any{"from": actor.Status, "to": status},
	})

	actor.Status = status
	return actor, nil
}

// record writes an audit entry. Audit failures never fail the mutation that
// already committed; they are logged and suppressed.
func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("audit write failed", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func isAdministrative(role Role) bool {
	return role == RoleManager || role == RoleAdmin
}
