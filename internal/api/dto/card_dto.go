package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/spec-kit/ticket-board/internal/domain"
)

// ID accepts JSON numbers or strings and keeps the string form. Ids in
// canonical integer form are written back as JSON numbers, anything else
// ("007", "+5") stays a string.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(canonicalNumber(n))
	return nil
}

// canonicalNumber writes whole numbers in base-10 integer form so 1, 1.0 and
// 1e0 name the same id.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return strconv.FormatInt(int64(f), 10)
	}
	return n.String()
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IDPtr converts an optional string id to its wire form.
func IDPtr(s *string) *ID {
	if s == nil || *s == "" {
		return nil
	}
	id := ID(*s)
	return &id
}

func (id *ID) stringPtr() *string {
	if id == nil || *id == "" {
		return nil
	}
	s := string(*id)
	return &s
}

// CardRecord is a ticket as the backend serializes it.
type CardRecord struct {
	ID          ID                  `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Designee    *string             `json:"designee"`
	DesigneeID  *ID                 `json:"designee_id"`
	Status      domain.TicketStatus `json:"status"`
	Priority    int                 `json:"priority"`
}

// Ticket maps the record into the domain model.
func (r CardRecord) Ticket() domain.Ticket {
	return domain.Ticket{
		ID:          string(r.ID),
		Title:       r.Title,
		Description: r.Description,
		Assignee:    r.Designee,
		AssigneeID:  r.DesigneeID.stringPtr(),
		Status:      r.Status,
		Priority:    r.Priority,
	}
}

// CreateCardRequest payload for POST /cards.
type CreateCardRequest struct {
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Priority    int                 `json:"priority"`
	Status      domain.TicketStatus `json:"status"`
	AuthorID    *ID                 `json:"author_id"`
	DesigneeID  *ID                 `json:"designee_id"`
}

// NewCreateCardRequest builds the wire payload from a draft.
func NewCreateCardRequest(d domain.TicketDraft) CreateCardRequest {
	return CreateCardRequest{
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
		Status:      d.Status,
		AuthorID:    IDPtr(&d.AuthorID),
		DesigneeID:  IDPtr(d.AssigneeID),
	}
}

// UpdateCardRequest payload for PUT /cards/:id from the edit form.
type UpdateCardRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    int     `json:"priority"`
	DesigneeID  *ID     `json:"designee_id"`
}

// NewUpdateCardRequest builds the wire payload from form changes.
func NewUpdateCardRequest(c domain.TicketChanges) UpdateCardRequest {
	return UpdateCardRequest{
		Title:       c.Title,
		Description: c.Description,
		Priority:    c.Priority,
		DesigneeID:  IDPtr(c.AssigneeID),
	}
}

// StatusUpdateRequest payload for PUT /cards/:id from a column move.
type StatusUpdateRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// DeletedPayload is the data of a ticketDeleted event.
type DeletedPayload struct {
	ID ID `json:"id"`
}

// DecodeCard decodes a full record, requiring an id.
func DecodeCard(data []byte) (domain.Ticket, error) {
	var rec CardRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Ticket{}, err
	}
	if rec.ID == "" {
		return domain.Ticket{}, errors.New("card record without id")
	}
	return rec.Ticket(), nil
}

// DecodeCardPatch decodes a partial record. Only keys present in the JSON
// object are set on the patch; explicit nulls clear nullable fields.
func DecodeCardPatch(data []byte) (domain.TicketPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.TicketPatch{}, err
	}

	var id ID
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return domain.TicketPatch{}, fmt.Errorf("id: %w", err)
		}
	}
	if id == "" {
		return domain.TicketPatch{}, errors.New("card patch without id")
	}

	patch := domain.TicketPatch{ID: string(id)}
	if err := decodeField(fields, "title", &patch.Title); err != nil {
		return patch, err
	}
	if err := decodeField(fields, "description", &patch.Description); err != nil {
		return patch, err
	}
	if err := decodeField(fields, "designee", &patch.Assignee); err != nil {
		return patch, err
	}
	if err := decodeField(fields, "status", &patch.Status); err != nil {
		return patch, err
	}
	if err := decodeField(fields, "priority", &patch.Priority); err != nil {
		return patch, err
	}

	var designeeID domain.Field[*ID]
	if err := decodeField(fields, "designee_id", &designeeID); err != nil {
		return patch, err
	}
	if designeeID.Set {
		patch.AssigneeID = domain.Some(designeeID.Value.stringPtr())
	}
	return patch, nil
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *domain.Field[T]) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = domain.Some(v)
	return nil
}
