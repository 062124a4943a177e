package repository

import (
	"sync"

	"github.com/spec-kit/ticket-board/internal/domain"
)

// TicketStore is the client-side source of truth for tickets. It keeps
// arrival order and holds at most one ticket per id. All methods are safe
// for concurrent use; listeners run after the lock is released.
type TicketStore struct {
	mu        sync.RWMutex
	order     []string
	byID      map[string]domain.Ticket
	listeners []func()
}

// NewTicketStore returns an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{byID: make(map[string]domain.Ticket)}
}

// Subscribe registers fn to be called after every effective mutation.
func (s *TicketStore) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ReplaceAll discards the current contents. Tickets without an id are
// skipped; repeated ids keep the first position and the last value.
func (s *TicketStore) ReplaceAll(tickets []domain.Ticket) {
	order := make([]string, 0, len(tickets))
	byID := make(map[string]domain.Ticket, len(tickets))
	for _, t := range tickets {
		if t.ID == "" {
			continue
		}
		if _, seen := byID[t.ID]; !seen {
			order = append(order, t.ID)
		}
		byID[t.ID] = t
	}

	s.mu.Lock()
	s.order = order
	s.byID = byID
	s.mu.Unlock()
	s.notify()
}

// Insert appends t when its id is not present. Inserting a known id is a
// no-op. Reports whether the store changed.
func (s *TicketStore) Insert(t domain.Ticket) bool {
	if t.ID == "" {
		return false
	}
	s.mu.Lock()
	if _, exists := s.byID[t.ID]; exists {
		s.mu.Unlock()
		return false
	}
	s.byID[t.ID] = t
	s.order = append(s.order, t.ID)
	s.mu.Unlock()
	s.notify()
	return true
}

// Merge applies the set fields of p to the ticket with the same id. An
// unknown id is a no-op, so a stale update never resurrects a removed
// ticket. Reports whether the store changed.
func (s *TicketStore) Merge(p domain.TicketPatch) bool {
	s.mu.Lock()
	current, exists := s.byID[p.ID]
	if !exists {
		s.mu.Unlock()
		return false
	}
	s.byID[p.ID] = p.Apply(current)
	s.mu.Unlock()
	s.notify()
	return true
}

// Remove deletes the ticket with id. Reports whether the store changed.
func (s *TicketStore) Remove(id string) bool {
	s.mu.Lock()
	if _, exists := s.byID[id]; !exists {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// Get returns the ticket with id.
func (s *TicketStore) Get(id string) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

// List returns a copy of all tickets in arrival order.
func (s *TicketStore) List() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of tickets.
func (s *TicketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *TicketStore) notify() {
	s.mu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
