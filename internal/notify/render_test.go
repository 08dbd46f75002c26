package notify

import (
	"strings"
	"testing"
)

func TestRenderKnownTemplates(t *testing.T) {
	body := Render(TemplateRequestTransition, map[string]any{
		"request_id": "abc-123",
		"from":       "NEW",
		"to":         "ACCEPTED",
	})
	for _, want := range []string{"abc-123", "NEW", "ACCEPTED"} {
		if !strings.Contains(body, want) {
			t.Fatalf("rendered body %q missing %q", body, want)
		}
	}

	body = Render(TemplateShiftForceEnded, map[string]any{"actor_id": int64(7)})
	if !strings.Contains(body, "7") || !strings.Contains(body, "manager") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestRenderUnknownTemplateFallsBack(t *testing.T) {
	if got := Render("no.such.template", nil); got != "no.such.template" {
		t.Fatalf("fallback = %q", got)
	}
}
