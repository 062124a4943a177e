package events

import (
	"encoding/json"
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

// Ticket events pushed by the backend.
const (
	EventTicketCreated EventType = "ticketCreated"
	EventTicketUpdated EventType = "ticketUpdated"
	EventTicketDeleted EventType = "ticketDeleted"
)

// Lifecycle events emitted by the sync channel itself.
const (
	EventConnect         EventType = "connect"
	EventConnectError    EventType = "connect_error"
	EventDisconnect      EventType = "disconnect"
	EventReconnectFailed EventType = "reconnect_failed"
)

// Envelope is the wire form of a pushed message.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is a message delivered to subscribers.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    interface{}     `json:"-"`
}

// ConnectPayload accompanies EventConnect.
type ConnectPayload struct {
	ConnectionID string
	Reconnect    bool
}

// DisconnectPayload accompanies EventDisconnect and EventConnectError.
type DisconnectPayload struct {
	Reason  string
	Attempt int
}
