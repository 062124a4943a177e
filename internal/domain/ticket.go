package domain

import "strings"

// TicketStatus enumerates the board columns a ticket can sit in.
type TicketStatus string

const (
	TicketStatusTodo       TicketStatus = "todo"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusDone       TicketStatus = "done"
)

// DefaultPriority is the priority a new ticket form starts with.
const DefaultPriority = 1

// BoardStatuses returns the column set in display order.
func BoardStatuses() []TicketStatus {
	return []TicketStatus{TicketStatusTodo, TicketStatusInProgress, TicketStatusDone}
}

// Valid reports whether s is one of the board columns.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusTodo, TicketStatusInProgress, TicketStatusDone:
		return true
	}
	return false
}

// Title is the column heading: capitalized, first dash replaced by a space.
func (s TicketStatus) Title() string {
	if s == "" {
		return ""
	}
	str := string(s)
	return strings.ToUpper(str[:1]) + strings.Replace(str[1:], "-", " ", 1)
}

// Ticket is a unit of work rendered on the board.
type Ticket struct {
	ID          string
	Title       string
	Description *string
	Assignee    *string
	AssigneeID  *string
	Status      TicketStatus
	Priority    int
}

// Field tracks whether a patch carries a value for a property.
type Field[T any] struct {
	Value T
	Set   bool
}

// Some returns a set field.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// TicketPatch is a partial ticket keyed by ID. Only set fields are applied.
type TicketPatch struct {
	ID          string
	Title       Field[string]
	Description Field[*string]
	Assignee    Field[*string]
	AssigneeID  Field[*string]
	Status      Field[TicketStatus]
	Priority    Field[int]
}

// Apply returns t with the patch's set fields written over it.
func (p TicketPatch) Apply(t Ticket) Ticket {
	if p.Title.Set {
		t.Title = p.Title.Value
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Assignee.Set {
		t.Assignee = p.Assignee.Value
	}
	if p.AssigneeID.Set {
		t.AssigneeID = p.AssigneeID.Value
	}
	if p.Status.Set {
		t.Status = p.Status.Value
	}
	if p.Priority.Set {
		t.Priority = p.Priority.Value
	}
	return t
}

// Overlay merges o into p; fields set in o win.
func (p TicketPatch) Overlay(o TicketPatch) TicketPatch {
	if o.Title.Set {
		p.Title = o.Title
	}
	if o.Description.Set {
		p.Description = o.Description
	}
	if o.Assignee.Set {
		p.Assignee = o.Assignee
	}
	if o.AssigneeID.Set {
		p.AssigneeID = o.AssigneeID
	}
	if o.Status.Set {
		p.Status = o.Status
	}
	if o.Priority.Set {
		p.Priority = o.Priority
	}
	return p
}

// TicketDraft is the payload for creating a ticket.
type TicketDraft struct {
	Title       string
	Description *string
	Priority    int
	Status      TicketStatus
	AuthorID    string
	AssigneeID  *string
}

// TicketChanges is the payload of the edit form. Status is changed only by moves.
type TicketChanges struct {
	Title       string
	Description *string
	Priority    int
	AssigneeID  *string
}

// Patch expresses the changes as a patch for ticket id.
func (c TicketChanges) Patch(id string) TicketPatch {
	return TicketPatch{
		ID:          id,
		Title:       Some(c.Title),
		Description: Some(c.Description),
		Priority:    Some(c.Priority),
		AssigneeID:  Some(c.AssigneeID),
	}
}

// StringPtr returns nil for an empty string, a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
