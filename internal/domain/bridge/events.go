package bridge

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a hub lifecycle event.
type EventKind string

const (
	EventClientConnected     EventKind = "clientConnected"
	EventClientRegistered    EventKind = "clientRegistered"
	EventClientDisconnected  EventKind = "clientDisconnected"
	EventActiveClientChanged EventKind = "activeClientChanged"
	EventClientError         EventKind = "clientError"
	EventClientMessage       EventKind = "message"
)

// Event is one hub lifecycle notification. ClientID is the client's current
// id at emission time (post-rewrite for registered clients). Payload is set
// only for EventClientMessage (the raw async object from the client); Err is
// set only for EventClientError.
type Event struct {
	ID        string
	Kind      EventKind
	ClientID  string
	Timestamp time.Time
	Payload   map[string]any
	Err       error
}

// NewEvent builds an Event with a fresh id and the current time.
func NewEvent(kind EventKind, clientID string) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
	}
}
