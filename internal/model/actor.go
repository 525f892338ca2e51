package model

import "github.com/google/uuid"

type ActorKind string

const (
	ActorStaff     ActorKind = "staff"     // permanent staff, linked to a member record
	ActorEphemeral ActorKind = "ephemeral" // shift-scoped PIN login
)

// Actor is the authenticated identity a request runs as
type Actor struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Kind       ActorKind  `json:"kind"`
	MemberID   *uuid.UUID `json:"member_id,omitempty"`
	Privileges []string   `json:"privileges"`
}

// HasPrivilege checks if the actor has a specific privilege
func (a *Actor) HasPrivilege(code string) bool {
	for _, p := range a.Privileges {
		if p == code {
			return true
		}
	}
	return false
}

// IsElevated reports whether the actor may sell beyond a member's credit limit
func (a *Actor) IsElevated() bool {
	return a.HasPrivilege(PrivCreditOverride)
}

func (a *Actor) AuditID() string {
	return a.ID.String()
}
