package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Scope is the addressing unit for messages and push connections: either
// a channel or a direct-message pair. The string form is stable and is
// used as the database column, the pub/sub topic and the wire field.
//
//	channel:<uuid>
//	dm:<lo-uuid>:<hi-uuid>
//
// The DM pair is canonicalized so that (a,b) and (b,a) produce the same
// scope; a direct conversation exists implicitly as soon as the first
// message between two principals is sent.
type Scope string

var ErrInvalidScope = errors.New("invalid scope")

func ChannelScope(channelID uuid.UUID) Scope {
	return Scope("channel:" + channelID.String())
}

func DMScope(a, b uuid.UUID) Scope {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	return Scope("dm:" + lo + ":" + hi)
}

// ParseScope validates the string form of a scope.
func ParseScope(s string) (Scope, error) {
	parts := strings.Split(s, ":")
	switch {
	case len(parts) == 2 && parts[0] == "channel":
		if _, err := uuid.Parse(parts[1]); err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
		return Scope(s), nil
	case len(parts) == 3 && parts[0] == "dm":
		a, err := uuid.Parse(parts[1])
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
		b, err := uuid.Parse(parts[2])
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
		return DMScope(a, b), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
}

func (s Scope) IsChannel() bool {
	return strings.HasPrefix(string(s), "channel:")
}

func (s Scope) IsDM() bool {
	return strings.HasPrefix(string(s), "dm:")
}

// ChannelID returns the channel id for a channel scope.
func (s Scope) ChannelID() (uuid.UUID, bool) {
	if !s.IsChannel() {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(string(s), "channel:"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Participants returns the two principal ids of a DM scope.
func (s Scope) Participants() (uuid.UUID, uuid.UUID, bool) {
	if !s.IsDM() {
		return uuid.Nil, uuid.Nil, false
	}
	parts := strings.Split(string(s), ":")
	a, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	b, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return a, b, true
}

// Includes reports whether the principal participates in a DM scope.
// Channel scopes always return false; channel access goes through the
// access controller instead.
func (s Scope) Includes(principalID uuid.UUID) bool {
	a, b, ok := s.Participants()
	return ok && (a == principalID || b == principalID)
}
