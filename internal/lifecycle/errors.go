// Package lifecycle defines the stable failure codes shared by the request
// and shift services. Every rejected operation carries one of these codes so
// the front-end can branch on the code instead of parsing message text.
package lifecycle

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are part of the API contract and
// never change meaning between releases.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeNotInShift        Code = "NOT_IN_SHIFT"
	CodeAlreadyActive     Code = "ALREADY_ACTIVE"
	CodeNoActiveShift     Code = "NO_ACTIVE_SHIFT"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeStorage           Code = "STORAGE_ERROR"
	CodeRoleNotEligible   Code = "ROLE_NOT_ELIGIBLE"
	CodeActorBlocked      Code = "ACTOR_BLOCKED"
)

// Error is a structured operation failure: a machine-checkable code plus a
// short message suitable for direct display to the acting party.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError builds an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the failure code from err, unwrapping as needed.
// It returns the empty code when err carries no lifecycle code.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsCode reports whether err carries the given failure code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
