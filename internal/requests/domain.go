// Package requests implements the maintenance request lifecycle: the state
// machine governing status transitions, gated by the acting party's role and,
// for executors, by an active work shift.
package requests

import (
	"time"

	"github.com/google/uuid"
)

// Status is the request lifecycle status.
type Status string

const (
	StatusNew           Status = "NEW"
	StatusAccepted      Status = "ACCEPTED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusClarification Status = "CLARIFICATION"
	StatusProcurement   Status = "PROCUREMENT"
	StatusDone          Status = "DONE"
	StatusConfirmed     Status = "CONFIRMED"
	StatusCancelled     Status = "CANCELLED"
)

// Valid reports whether the status is a member of the closed state set.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	targets, ok := transitions[s]
	return ok && len(targets) == 0
}

// Working reports whether the status is one a submitter must never reach on
// their own request as the acting party.
func (s Status) Working() bool {
	switch s {
	case StatusAccepted, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// transitions is the static matrix of legal current-status to target-status
// moves. CLARIFICATION and PROCUREMENT are mutually reachable from
// IN_PROGRESS and from each other.
var transitions = map[Status][]Status{
	StatusNew:           {StatusAccepted, StatusInProgress, StatusProcurement, StatusClarification, StatusCancelled},
	StatusAccepted:      {StatusInProgress, StatusCancelled},
	StatusInProgress:    {StatusClarification, StatusProcurement, StatusDone, StatusCancelled},
	StatusClarification: {StatusInProgress, StatusProcurement, StatusCancelled},
	StatusProcurement:   {StatusInProgress, StatusClarification, StatusCancelled},
	StatusDone:          {StatusConfirmed},
	StatusConfirmed:     {},
	StatusCancelled:     {},
}

// CanTransitionTo reports whether the matrix permits moving to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Category classifies the kind of work requested.
type Category string

const (
	CategoryPlumbing   Category = "PLUMBING"
	CategoryElectrical Category = "ELECTRICAL"
	CategoryHVAC       Category = "HVAC"
	CategoryCarpentry  Category = "CARPENTRY"
	CategoryAppliance  Category = "APPLIANCE"
	CategoryGeneral    Category = "GENERAL"
)

// Valid reports whether the category is a member of the closed enum.
func (c Category) Valid() bool {
	switch c {
	case CategoryPlumbing, CategoryElectrical, CategoryHVAC, CategoryCarpentry, CategoryAppliance, CategoryGeneral:
		return true
	default:
		return false
	}
}

// Urgency ranks how quickly a request needs attention.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyNormal    Urgency = "NORMAL"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyEmergency Urgency = "EMERGENCY"
)

// Valid reports whether the urgency is a member of the closed enum.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyEmergency:
		return true
	default:
		return false
	}
}

// Request is one submitted unit of maintenance work. Requests are mutated
// exclusively through the transition operation and never deleted; CANCELLED
// is a terminal status, not a removal.
type Request struct {
	ID          uuid.UUID  `json:"id"`
	SubmitterID int64      `json:"submitter_id"`
	ExecutorID  *int64     `json:"executor_id,omitempty"`
	Category    Category   `json:"category"`
	AddressRef  string     `json:"address_ref"`
	Description string     `json:"description"`
	Urgency     Urgency    `json:"urgency"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateInput carries the fields needed to submit a request.
type CreateInput struct {
	Category    Category
	AddressRef  string
	Description string
	Urgency     Urgency
}

// ListFilter narrows request listings.
type ListFilter struct {
	Status      *Status
	Category    *Category
	Urgency     *Urgency
	SubmitterID *int64
	ExecutorID  *int64
	Limit       int
	Offset      int
}
