// Package shifts tracks bounded work sessions. An actor must hold an active
// shift to perform field-status transitions on requests; at most one shift
// per actor is active at any time, enforced at the storage level.
package shifts

import (
	"time"

	"github.com/google/uuid"
)

// Status is the shift lifecycle status.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether the status is a member of the closed status enum.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Shift is one bounded work session. Shifts are never deleted; ending one
// sets end_time and flips the status.
type Shift struct {
	ID        uuid.UUID  `json:"id"`
	ActorID   int64      `json:"actor_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    Status     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
}
