package requests

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/upkeep-hq/upkeep/internal/actors"
	"github.com/upkeep-hq/upkeep/internal/lifecycle"
	"github.com/upkeep-hq/upkeep/internal/platform/httpx"
)

// Resolver builds authorization contexts for acting parties.
type Resolver interface {
	Resolve(ctx context.Context, actorID int64) (actors.AuthContext, error)
}

// Handler manages request endpoints.
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

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/requests", h.create)
	r.Get("/requests", h.list)
	r.Get("/requests/{id}", h.get)
	r.Post("/requests/{id}/transition", h.transition)
}

// result is the envelope returned by the mutating request endpoints.
type result struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Request *Request `json:"request,omitempty"`
}

type createRequest struct {
	ActorID     int64  `json:"actor_id" validate:"required,gt=0"`
	Category    string `json:"category" validate:"required"`
	AddressRef  string `json:"address_ref" validate:"required,max=500"`
	Description string `json:"description" validate:"required,max=4000"`
	Urgency     string `json:"urgency" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := h.resolver.Resolve(r.Context(), req.ActorID)
	if err != nil {
		h.respond(w, nil, err, "")
		return
	}
	created, err := h.service.Create(r.Context(), auth, CreateInput{
		Category:    Category(req.Category),
		AddressRef:  req.AddressRef,
		Description: req.Description,
		Urgency:     Urgency(req.Urgency),
	})
	h.respond(w, created, err, "request created")
}

type transitionRequest struct {
	ActorID int64  `json:"actor_id" validate:"required,gt=0"`
	Target  string `json:"target" validate:"required"`
	Notes   string `json:"notes" validate:"max=4000"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request id must be a UUID")
		return
	}
	var req transitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	auth, err := h.resolver.Resolve(r.Context(), req.ActorID)
	if err != nil {
		h.respond(w, nil, err, "")
		return
	}
	updated, err := h.service.Transition(r.Context(), auth, id, Status(req.Target), req.Notes)
	h.respond(w, updated, err, "request updated")
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request id must be a UUID")
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseListFilter(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid list filter")
		return
	}
	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Request{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": out})
}

func parseListFilter(r *http.Request) (ListFilter, bool) {
	var filter ListFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return filter, false
		}
		filter.Status = &status
	}
	if raw := q.Get("category"); raw != "" {
		category := Category(raw)
		if !category.Valid() {
			return filter, false
		}
		filter.Category = &category
	}
	if raw := q.Get("urgency"); raw != "" {
		urgency := Urgency(raw)
		if !urgency.Valid() {
			return filter, false
		}
		filter.Urgency = &urgency
	}
	if raw := q.Get("submitter_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, false
		}
		filter.SubmitterID = &id
	}
	if raw := q.Get("executor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, false
		}
		filter.ExecutorID = &id
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	return filter, true
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
func (h *Handler) respond(w http.ResponseWriter, req *Request, err error, okMessage string) {
	if err == nil {
		httpx.JSON(w, http.StatusOK, result{Success: true, Message: okMessage, Request: req})
		return
	}
	var le *lifecycle.Error
	if !errors.As(err, &le) {
		h.logger.Error("request operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, httpx.StatusForCode(le.Code), result{Success: false, Message: le.Message, Code: string(le.Code)})
}
