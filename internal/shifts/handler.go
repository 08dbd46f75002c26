package shifts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/upkeep-hq/upkeep/internal/actors"
	"github.com/upkeep-hq/upkeep/internal/lifecycle"
	"github.com/upkeep-hq/upkeep/internal/platform/httpx"
)

// Resolver builds authorization contexts for acting parties.
type Resolver interface {
	Resolve(ctx context.Context, actorID int64) (actors.AuthContext, error)
}

// Handler manages shift endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  Resolver
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver Resolver) *Handler {
	return &Handler{logger: logger, service: service, resolver: resolver, validator: validator.New()}
}

// MountRoutes registers shift routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/shifts/start", h.start)
	r.Post("/shifts/end", h.end)
	r.Post("/shifts/force-end", h.forceEnd)
	r.Get("/shifts/active", h.listActive)
	r.Get("/shifts", h.listByActor)
}

// result is the envelope returned by the mutating shift endpoints.
type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Shift   *Shift `json:"shift,omitempty"`
}

type startRequest struct {
	ActorID int64  `json:"actor_id" validate:"required,gt=0"`
	Notes   string `json:"notes" validate:"max=2000"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := h.resolver.Resolve(r.Context(), req.ActorID)
	if err != nil {
		h.respond(w, nil, err, "shift started")
		return
	}
	shift, err := h.service.Start(r.Context(), auth)
	h.respond(w, shift, err, "shift started")
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := h.resolver.Resolve(r.Context(), req.ActorID)
	if err != nil {
		h.respond(w, nil, err, "shift ended")
		return
	}
	shift, err := h.service.End(r.Context(), auth, req.Notes)
	h.respond(w, shift, err, "shift ended")
}

type forceEndRequest struct {
	ManagerID     int64  `json:"manager_id" validate:"required,gt=0"`
	TargetActorID int64  `json:"target_actor_id" validate:"required,gt=0"`
	Notes         string `json:"notes" validate:"max=2000"`
}

func (h *Handler) forceEnd(w http.ResponseWriter, r *http.Request) {
	var req forceEndRequest
	if !h.decode(w, r, &req) {
		return
	}
	manager, err := h.resolver.Resolve(r.Context(), req.ManagerID)
	if err != nil {
		h.respond(w, nil, err, "shift ended")
		return
	}
	shift, err := h.service.ForceEnd(r.Context(), manager, req.TargetActorID, req.Notes)
	h.respond(w, shift, err, "shift ended")
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list active shifts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if shifts == nil {
		shifts = []Shift{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (h *Handler) listByActor(w http.ResponseWriter, r *http.Request) {
	actorID, err := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err != nil || actorID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "actor_id must be a positive integer")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	shifts, err := h.service.ListByActor(r.Context(), actorID, limit, offset)
	if err != nil {
		h.logger.Error("list shifts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if shifts == nil {
		shifts = []Shift{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// respond renders the result envelope. Lifecycle failures map onto their
// HTTP status but keep the success/message/code shape the front-end expects.
func (h *Handler) respond(w http.ResponseWriter, shift *Shift, err error, okMessage string) {
	if err == nil {
		httpx.JSON(w, http.StatusOK, result{Success: true, Message: okMessage, Shift: shift})
		return
	}
	var le *lifecycle.Error
	if !errors.As(err, &le) {
		h.logger.Error("shift operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, httpx.StatusForCode(le.Code), result{Success: false, Message: le.Message, Code: string(le.Code)})
}
