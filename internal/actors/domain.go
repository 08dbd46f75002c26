// Package actors manages authenticated parties and the roles that govern
// what they may do. Role data is persisted as a serialized list plus an
// active-role pointer; both are parsed into a validated RoleSet exactly once
// when the actor row is loaded.
package actors

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is one permission level an actor can hold.
type Role string

const (
	// RoleApplicant is the base role every actor holds: a resident who
	// submits requests.
	RoleApplicant Role = "applicant"
	// RoleExecutor performs field work and moves requests through the
	// working statuses while inside an active shift.
	RoleExecutor Role = "executor"
	// RoleManager coordinates executors and may move requests freely.
	RoleManager Role = "manager"
	// RoleAdmin administers actors and has manager permissions.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is a member of the closed role enum.
func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleExecutor, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// FieldCapable reports whether the role may hold work shifts.
func (r Role) FieldCapable() bool {
	switch r {
	case RoleExecutor, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// Status is the actor lifecycle status.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusBlocked  Status = "BLOCKED"
)

// Valid reports whether the status is a member of the closed status enum.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusBlocked:
		return true
	default:
		return false
	}
}

// RoleSet is an ordered, de-duplicated, never-empty set of roles with one
// active role that is always a member of the set.
type RoleSet struct {
	roles  []Role
	active Role
}

// NewRoleSet builds a RoleSet from the given roles and active role. Invalid
// entries are dropped, duplicates collapse onto their first occurrence, an
// empty result falls back to the applicant base role, and an active role
// outside the set is corrected to the first entry.
func NewRoleSet(roles []Role, active Role) RoleSet {
	seen := make(map[Role]struct{}, len(roles))
	clean := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		clean = append(clean, r)
	}
	if len(clean) == 0 {
		clean = []Role{RoleApplicant}
	}
	if _, ok := seen[active]; !ok || !active.Valid() {
		active = clean[0]
	}
	return RoleSet{roles: clean, active: active}
}

// ParseRoleSet decodes persisted role data. The raw list is expected to be a
// JSON string array; a bare role name is accepted for legacy rows. The
// returned RoleSet is always usable. The error, when non-nil, only signals
// that a fallback was applied so the caller can log it.
func ParseRoleSet(rawRoles, rawActive string) (RoleSet, error) {
	rawRoles = strings.TrimSpace(rawRoles)
	active := Role(strings.TrimSpace(rawActive))

	if rawRoles == "" {
		return NewRoleSet(nil, active), errEmptyRoles
	}

	var names []string
	if err := json.Unmarshal([]byte(rawRoles), &names); err != nil {
		// Legacy rows store a single bare role name.
		if legacy := Role(rawRoles); legacy.Valid() {
			return NewRoleSet([]Role{legacy}, active), nil
		}
		return NewRoleSet(nil, active), err
	}

	roles := make([]Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, Role(strings.TrimSpace(name)))
	}
	if !containsValid(roles) {
		return NewRoleSet(nil, active), errMalformedRoles
	}
	return NewRoleSet(roles, active), nil
}

func containsValid(roles []Role) bool {
	for _, r := range roles {
		if r.Valid() {
			return true
		}
	}
	return false
}

var (
	errEmptyRoles     = parseError("empty role list")
	errMalformedRoles = parseError("no valid roles in list")
)

type parseError string

func (e parseError) Error() string { return string(e) }

// Roles returns a copy of the ordered role list.
func (rs RoleSet) Roles() []Role {
	out := make([]Role, len(rs.roles))
	copy(out, rs.roles)
	return out
}

// Active returns the single role currently governing the actor's permissions.
func (rs RoleSet) Active() Role {
	if rs.active == "" {
		return RoleApplicant
	}
	return rs.active
}

// Has reports whether the set contains the role.
func (rs RoleSet) Has(role Role) bool {
	for _, r := range rs.roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithActive returns a copy of the set with the active role switched. The
// switch is ignored when the role is not a member.
func (rs RoleSet) WithActive(role Role) RoleSet {
	if !rs.Has(role) {
		return rs
	}
	return RoleSet{roles: rs.roles, active: role}
}

// FieldCapable reports whether the active role may hold work shifts.
func (rs RoleSet) FieldCapable() bool {
	return rs.Active().FieldCapable()
}

// Encode serializes the role list for storage.
func (rs RoleSet) Encode() string {
	roles := rs.roles
	if len(roles) == 0 {
		roles = []Role{RoleApplicant}
	}
	data, _ := json.Marshal(roles)
	return string(data)
}

type roleSetJSON struct {
	Roles  []Role `json:"roles"`
	Active Role   `json:"active"`
}

// MarshalJSON renders the set as {"roles": […], "active": …}.
func (rs RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(roleSetJSON{Roles: rs.Roles(), Active: rs.Active()})
}

// UnmarshalJSON restores a set serialized by MarshalJSON.
func (rs *RoleSet) UnmarshalJSON(data []byte) error {
	var payload roleSetJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*rs = NewRoleSet(payload.Roles, payload.Active)
	return nil
}

// Actor is an authenticated party. Actors are created on first contact and
// never hard-deleted; blocking is a status change.
type Actor struct {
	ID          int64     `json:"id"`
	ExternalRef string    `json:"external_ref"`
	Name        string    `json:"name"`
	Roles       RoleSet   `json:"roles"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuthContext is the authorization context threaded explicitly through every
// lifecycle operation: who acts, with which roles, in which account status.
type AuthContext struct {
	ActorID int64   `json:"actor_id"`
	Roles   RoleSet `json:"roles"`
	Status  Status  `json:"status"`
}

// ActiveRole returns the role governing this call.
func (a AuthContext) ActiveRole() Role {
	return a.Roles.Active()
}

// Blocked reports whether the actor is blocked.
func (a AuthContext) Blocked() bool {
	return a.Status == StatusBlocked
}
