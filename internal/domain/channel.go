package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChannelKind string

const (
	// ChannelAdhoc is a channel created by a principal; access is
	// creator-or-member.
	ChannelAdhoc ChannelKind = "adhoc"
	// ChannelRole is one of the fixed role-scoped channels ("students",
	// "teachers", "parents", "parents-teachers"); access is by role.
	ChannelRole ChannelKind = "role"
)

type Channel struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Kind      ChannelKind `json:"kind"`
	CreatorID uuid.UUID   `json:"creator_id"`
	// MemberIDs only ever grows: membership is mutated by invitation and
	// there is no removal path. Channels are never deleted.
	MemberIDs []uuid.UUID `json:"member_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

func (c *Channel) Scope() Scope {
	return ChannelScope(c.ID)
}

// HasMember reports whether the principal is in the member set.
func (c *Channel) HasMember(principalID uuid.UUID) bool {
	for _, id := range c.MemberIDs {
		if id == principalID {
			return true
		}
	}
	return false
}
