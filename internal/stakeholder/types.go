package stakeholder

import "time"

// Type classifies a stakeholder. It never changes after creation.
type Type string

const (
	TypeReferrer        Type = "referrer"
	TypeMedicalDirector Type = "md"
	TypeFacility        Type = "facility"
	TypePayer           Type = "payer"
	TypePatientContact  Type = "patient_contact"
	TypeInternal        Type = "internal"
)

// Types lists every stakeholder type in display order.
var Types = []Type{
	TypeReferrer,
	TypeMedicalDirector,
	TypeFacility,
	TypePayer,
	TypePatientContact,
	TypeInternal,
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// MemberRole is a user's role within a single stakeholder.
type MemberRole string

const (
	MemberOwner        MemberRole = "owner"
	MemberCollaborator MemberRole = "collaborator"
	MemberViewer       MemberRole = "viewer"
)

// Stakeholder is the tracked business entity. ID and Type are immutable; a
// non-empty OrgID is immutable and acts as the security scope boundary.
// Empty OrgID and OwnerID mean "none".
type Stakeholder struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Name      string         `json:"name"`
	Status    Status         `json:"status"`
	OwnerID   string         `json:"owner_id,omitempty"`
	OrgID     string         `json:"org_id,omitempty"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Member relates a user to a stakeholder. At most one row exists per pair.
type Member struct {
	StakeholderID string     `json:"stakeholder_id"`
	UserID        string     `json:"user_id"`
	Role          MemberRole `json:"role"`
}

// CreateInput is a validated create request. Empty OwnerID and OrgID fall
// back to the actor.
type CreateInput struct {
	Type    Type
	Name    string
	OwnerID string
	OrgID   string
	Meta    map[string]any
}

// UpdateStatusInput is a validated status change request.
type UpdateStatusInput struct {
	StakeholderID string
	Status        Status
	Reason        string
}

// Event describes a committed lifecycle change.
type Event struct {
	Kind          string    `json:"kind"`
	StakeholderID string    `json:"stakeholder_id"`
	Type          Type      `json:"type"`
	OrgID         string    `json:"org_id,omitempty"`
	ActorID       string    `json:"actor_id"`
	From          Status    `json:"from,omitempty"`
	To            Status    `json:"to"`
	At            time.Time `json:"at"`
}

// Notifier receives events after their transaction committed.
type Notifier interface {
	Publish(evt Event)
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
