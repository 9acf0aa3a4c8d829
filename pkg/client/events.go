package client

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

// Server → client event types, matching the push interface wire format.
const (
	EventMessageCreated = "message.created"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventReactionAdded  = "reaction.added"
	eventPing           = "ping"
	eventPong           = "pong"
)

// Event is the wire envelope arriving on an open push connection.
type Event struct {
	Type      string          `json:"type"`
	Scope     domain.Scope    `json:"scope,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// Message decodes the full-message payload carried by created, edited and
// reaction events.
func (e *Event) Message() (*domain.Message, error) {
	var msg domain.Message
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Deleted decodes the id-and-scope payload of a delete event.
func (e *Event) Deleted() (uuid.UUID, domain.Scope, error) {
	var payload struct {
		ID    uuid.UUID    `json:"id"`
		Scope domain.Scope `json:"scope"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return uuid.Nil, "", err
	}
	return payload.ID, payload.Scope, nil
}
