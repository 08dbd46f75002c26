package actors

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/upkeep-hq/upkeep/internal/platform/httpx"
)

// Handler manages actor administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers actor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/actors", h.register)
	r.Get("/actors", h.list)
	r.Get("/actors/{id}", h.get)
	r.Post("/actors/{id}/roles", h.grantRoles)
	r.Post("/actors/{id}/active-role", h.setActiveRole)
	r.Post("/actors/{id}/approve", h.approve)
	r.Post("/actors/{id}/block", h.block)
}

type registerRequest struct {
	ExternalRef string `json:"external_ref" validate:"required,min=1,max=128"`
	Name        string `json:"name" validate:"max=200"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, err := h.service.Register(r.Context(), req.ExternalRef, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actor)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actor)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	actors, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list actors", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if actors == nil {
		actors = []Actor{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actors": actors})
}

type grantRolesRequest struct {
	GrantorID int64    `json:"grantor_id" validate:"required,gt=0"`
	Roles     []string `json:"roles" validate:"required,min=1,dive,required"`
}

func (h *Handler) grantRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req grantRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grantor, err := h.service.Resolve(r.Context(), req.GrantorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roles := make([]Role, 0, len(req.Roles))
	for _, name := range req.Roles {
		roles = append(roles, Role(name))
	}
	actor, err := h.service.GrantRoles(r.Context(), grantor, id, roles)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actor)
}

type setActiveRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) setActiveRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req setActiveRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, err := h.service.SetActiveRole(r.Context(), id, Role(req.Role))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actor)
}

type statusChangeRequest struct {
	AdminID int64 `json:"admin_id" validate:"required,gt=0"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.Approve)
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.Block)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, admin AuthContext, id int64) (*Actor, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req statusChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	admin, err := h.service.Resolve(r.Context(), req.AdminID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, err := apply(r.Context(), admin, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actor)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
