// Package report renders PDF exports through a Gotenberg sidecar.
package report

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/upkeep-hq/upkeep/internal/audit"
)

// AuditSource supplies audit entries for trail exports.
type AuditSource interface {
	ListBySubject(ctx context.Context, kind, id string, limit, offset int) ([]audit.Entry, error)
}

// Handler manages report endpoints.
type Handler struct {
	client *Client
	source AuditSource
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, source AuditSource, logger *slog.Logger) *Handler {
	return &Handler{client: client, source: source, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/audit-trail", h.auditTrail)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// auditTrail exports the audit history of one subject as a PDF.
func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("subject_kind")
	id := r.URL.Query().Get("subject_id")
	if kind == "" || id == "" {
		http.Error(w, "subject_kind and subject_id are required", http.StatusBadRequest)
		return
	}

	entries, err := h.source.ListBySubject(r.Context(), kind, id, 200, 0)
	if err != nil {
		h.logger.Error("load audit trail", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	html, err := renderAuditHTML(kind, id, entries)
	if err != nil {
		h.logger.Error("render audit trail html", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render audit trail pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=audit-trail.pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

var auditTemplate = template.Must(template.New("audit").Parse(`<html>
<head><title>Audit Trail</title></head>
<body>
<h1>Audit trail for {{.Kind}} {{.ID}}</h1>
<p>Generated at {{.GeneratedAt}}</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Time</th><th>Actor</th><th>Action</th></tr>
{{range .Entries}}<tr><td>{{.CreatedAt.Format "2006-01-02 15:04:05"}}</td><td>{{.ActorID}}</td><td>{{.Action}}</td></tr>
{{end}}</table>
</body>
</html>`))

func renderAuditHTML(kind, id string, entries []audit.Entry) (string, error) {
	var sb strings.Builder
	err := auditTemplate.Execute(&sb, map[string]any{
		"Kind":        kind,
		"ID":          id,
		"GeneratedAt": time.Now().Format(time.RFC1123),
		"Entries":     entries,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
