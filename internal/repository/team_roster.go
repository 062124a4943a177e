package repository

import (
	"sync"

	"github.com/spec-kit/ticket-board/internal/domain"
)

// TeamRoster holds the last fetched list of assignable team members.
type TeamRoster struct {
	mu      sync.RWMutex
	members []domain.TeamMember
}

// NewTeamRoster returns an empty roster.
func NewTeamRoster() *TeamRoster {
	return &TeamRoster{}
}

// Replace swaps in a freshly fetched list.
func (r *TeamRoster) Replace(members []domain.TeamMember) {
	cp := append([]domain.TeamMember(nil), members...)
	r.mu.Lock()
	r.members = cp
	r.mu.Unlock()
}

// List returns a copy of the roster.
func (r *TeamRoster) List() []domain.TeamMember {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.TeamMember(nil), r.members...)
}

// Name returns the display name for id, if known.
func (r *TeamRoster) Name(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.ID == id {
			return m.Name, true
		}
	}
	return "", false
}
