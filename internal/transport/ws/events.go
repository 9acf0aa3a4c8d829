package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

// Event types - Server → Client
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageEdited  = "message.edited"
	EventTypeMessageDeleted = "message.deleted"
	EventTypeReactionAdded  = "reaction.added"
	EventTypePong           = "pong"
	EventTypeError          = "error"
)

// Event types - Client → Server. The scope subscription happens in the
// open handshake (query parameters), so ping is the only control message
// a client sends.
const (
	EventTypePing = "ping"
)

// Event is the envelope for all WebSocket messages. Mutation events carry
// the full resulting message so receivers never need a follow-up fetch;
// deletions carry only the id and scope.
type Event struct {
	Type      string          `json:"type"`
	Scope     domain.Scope    `json:"scope,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type MessagePayload struct {
	domain.Message
}

type MessageDeletedPayload struct {
	ID    uuid.UUID    `json:"id"`
	Scope domain.Scope `json:"scope"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, scope domain.Scope, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Scope:     scope,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
