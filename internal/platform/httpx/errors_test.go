package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/upkeep-hq/upkeep/internal/lifecycle"
)

func TestStatusForCode(t *testing.T) {
	cases := map[lifecycle.Code]int{
		lifecycle.CodeNotFound:          http.StatusNotFound,
		lifecycle.CodeForbidden:         http.StatusForbidden,
		lifecycle.CodeInvalidTransition: http.StatusConflict,
		lifecycle.CodeNotInShift:        http.StatusConflict,
		lifecycle.CodeValidation:        http.StatusBadRequest,
		lifecycle.CodeStorage:           http.StatusInternalServerError,
		lifecycle.Code("MYSTERY"):       http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusForCode(code); got != want {
			t.Errorf("StatusForCode(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestRespondErrorKeepsLifecycleCode(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, lifecycle.NewError(lifecycle.CodeNotInShift, "an active shift is required"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	var body ProblemDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "NOT_IN_SHIFT" {
		t.Fatalf("code = %q, want NOT_IN_SHIFT", body.Code)
	}
	if body.Detail == "" {
		t.Fatal("detail must carry the message")
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.ErrBodyNotAllowed)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body ProblemDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Detail != "" || body.Code != "" {
		t.Fatalf("internal errors must stay opaque, got %+v", body)
	}
}

func TestRespondErrorUnauthorized(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, ErrUnauthorized)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}
