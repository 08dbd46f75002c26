package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/upkeep-hq/upkeep/internal/platform/httpx"
)

// Handler exposes the audit trail to administrative tooling.
type Handler struct {
	logger   *slog.Logger
	recorder *Recorder
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, recorder *Recorder) *Handler {
	return &Handler{logger: logger, recorder: recorder}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	var (
		entries []Entry
		err     error
	)
	switch {
	case q.Get("actor_id") != "":
		actorID, parseErr := strconv.ParseInt(q.Get("actor_id"), 10, 64)
		if parseErr != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "actor_id must be an integer")
			return
		}
		entries, err = h.recorder.ListByActor(r.Context(), actorID, limit, offset)
	case q.Get("subject_kind") != "" && q.Get("subject_id") != "":
		entries, err = h.recorder.ListBySubject(r.Context(), q.Get("subject_kind"), q.Get("subject_id"), limit, offset)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "provide actor_id or subject_kind and subject_id")
		return
	}
	if err != nil {
		h.logger.Error("list audit entries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
