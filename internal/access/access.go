// Package access decides, per (principal, channel), whether read/write is
// permitted. The rules are evaluated in order, first match wins, and have
// no side effects. The same check runs before a channel is listed in the
// directory and again on every write path; a client-side check is a UX
// convenience only.
package access

import (
	"github.com/avukic/skolar/internal/domain"
)

// roleChannels maps the fixed role-scoped channel names onto the roles
// allowed inside them.
var roleChannels = map[string][]domain.Role{
	"students":         {domain.RoleStudent},
	"teachers":         {domain.RoleTeacher},
	"parents":          {domain.RoleParent},
	"parents-teachers": {domain.RoleParent, domain.RoleTeacher},
}

// CanAccess evaluates the ordered rule list:
//  1. admins always pass
//  2. fixed role-scoped channel names pass iff the principal's role is in
//     the channel's allowed-role set
//  3. otherwise creator or member
//  4. default deny
func CanAccess(p domain.Principal, ch *domain.Channel) bool {
	if p.Role == domain.RoleAdmin {
		return true
	}
	if allowed, ok := roleChannels[ch.Name]; ok {
		for _, role := range allowed {
			if p.Role == role {
				return true
			}
		}
		return false
	}
	if ch.CreatorID == p.ID {
		return true
	}
	return ch.HasMember(p.ID)
}

// IsRoleChannel reports whether name is one of the fixed role-scoped
// channel names. Channels with these names are created with kind "role".
func IsRoleChannel(name string) bool {
	_, ok := roleChannels[name]
	return ok
}
