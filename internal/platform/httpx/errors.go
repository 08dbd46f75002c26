package httpx

import (
	"errors"
	"net/http"

	"github.com/upkeep-hq/upkeep/internal/lifecycle"
)

// ErrUnauthorized rejects requests without valid API credentials.
var ErrUnauthorized = errors.New("unauthorized")

// statusByCode maps lifecycle failure codes onto HTTP statuses.
var statusByCode = map[lifecycle.Code]int{
	lifecycle.CodeNotFound:          http.StatusNotFound,
	lifecycle.CodeForbidden:         http.StatusForbidden,
	lifecycle.CodeInvalidTransition: http.StatusConflict,
	lifecycle.CodeNotInShift:        http.StatusConflict,
	lifecycle.CodeAlreadyActive:     http.StatusConflict,
	lifecycle.CodeNoActiveShift:     http.StatusConflict,
	lifecycle.CodeValidation:        http.StatusBadRequest,
	lifecycle.CodeStorage:           http.StatusInternalServerError,
	lifecycle.CodeRoleNotEligible:   http.StatusForbidden,
	lifecycle.CodeActorBlocked:      http.StatusForbidden,
}

// StatusForCode returns the HTTP status for a lifecycle failure code.
func StatusForCode(code lifecycle.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to RFC7807 responses. Lifecycle errors keep
// their code and message; anything else becomes an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnauthorized) {
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var le *lifecycle.Error
	if errors.As(err, &le) {
		status, ok := statusByCode[le.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		JSON(w, status, ProblemDetail{
			Title:  http.StatusText(status),
			Status: status,
			Detail: le.Message,
			Code:   string(le.Code),
		})
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
