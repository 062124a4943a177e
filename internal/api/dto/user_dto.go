package dto

import "github.com/spec-kit/ticket-board/internal/domain"

// UserRecord is a team member as returned by GET /users.
type UserRecord struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// TeamMember maps the record into the domain model.
func (r UserRecord) TeamMember() domain.TeamMember {
	return domain.TeamMember{ID: string(r.ID), Name: r.Name}
}

// IdentityRecord is the user object persisted next to the token.
type IdentityRecord struct {
	ID    ID     `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Identity maps the record into the domain model.
func (r IdentityRecord) Identity() domain.Identity {
	return domain.Identity{ID: string(r.ID), Name: r.Name, Email: r.Email}
}

// NewIdentityRecord builds the persisted form of an identity.
func NewIdentityRecord(i domain.Identity) IdentityRecord {
	return IdentityRecord{ID: ID(i.ID), Name: i.Name, Email: i.Email}
}
