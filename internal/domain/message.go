package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message belongs to exactly one scope for its entire lifetime; Scope is
// immutable after creation. Deletion is a soft flag, never physical
// removal.
type Message struct {
	ID       uuid.UUID `json:"id"`
	Scope    Scope     `json:"scope"`
	AuthorID uuid.UUID `json:"author_id"`
	Body     string    `json:"body"`
	// ClientKey is the client-generated idempotency key carried through
	// the mutation call and the broadcast payload so the sending client
	// can correlate its optimistic entry with the server echo.
	ClientKey string `json:"client_key,omitempty"`
	// Version increments on every edit. Edits must present the version
	// they read; a stale version is rejected rather than overwritten.
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	EditedAt    *time.Time   `json:"edited_at,omitempty"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
	// Joined field
	AuthorName string `json:"author_name,omitempty"`
}

func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// HasReaction reports whether the principal already reacted with emoji.
func (m *Message) HasReaction(emoji string, principalID uuid.UUID) bool {
	for _, r := range m.Reactions {
		if r.Emoji == emoji && r.PrincipalID == principalID {
			return true
		}
	}
	return false
}

// Attachment is created once with its message and owned exclusively by it.
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	MessageID   uuid.UUID `json:"message_id"`
	StoragePath string    `json:"storage_path"`
	Filename    string    `json:"filename"`
}

type Reaction struct {
	Emoji       string    `json:"emoji"`
	PrincipalID uuid.UUID `json:"principal_id"`
}
