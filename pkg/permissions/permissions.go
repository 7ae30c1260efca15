// Package permissions gates which users and channels the bot responds in.
package permissions

import "github.com/go-go-golems/kuyari/pkg/chat"

// ListConfig is an allow/block id pair. An empty allow list means allow all,
// subject to the block list.
type ListConfig struct {
	AllowedIDs []chat.ID `mapstructure:"allowed_ids" yaml:"allowed_ids"`
	BlockedIDs []chat.ID `mapstructure:"blocked_ids" yaml:"blocked_ids"`
}

// UserListConfig extends the user list with admins, who bypass user and DM
// gating entirely.
type UserListConfig struct {
	ListConfig `mapstructure:",squash" yaml:",inline"`
	AdminIDs   []chat.ID `mapstructure:"admin_ids" yaml:"admin_ids"`
}

type Config struct {
	Users    UserListConfig `mapstructure:"users" yaml:"users"`
	Roles    ListConfig     `mapstructure:"roles" yaml:"roles"`
	Channels ListConfig     `mapstructure:"channels" yaml:"channels"`
}

// Request carries everything needed to evaluate one incoming message.
type Request struct {
	UserID     chat.ID
	RoleIDs    []chat.ID
	ChannelIDs []chat.ID
	IsDM       bool
	AllowDMs   bool
}

func (c *Config) IsAdmin(userID chat.ID) bool {
	return contains(c.Users.AdminIDs, userID)
}

// Allows reports whether the message passes both the user gate and the
// channel gate.
//
// User gate: with no allowed users (and, outside DMs, no allowed roles
// either) everyone is allowed; otherwise the author must be an admin, an
// allowed user, or carry an allowed role. Block lists override in all cases.
//
// Channel gate: in DMs only admins bypass a DM ban; in guilds an empty
// allowed channel list allows everywhere, otherwise the channel, its parent
// or its category must be listed. Blocked channels override.
func (c *Config) Allows(req Request) bool {
	isAdmin := c.IsAdmin(req.UserID)

	allowAllUsers := len(c.Users.AllowedIDs) == 0
	if !req.IsDM {
		allowAllUsers = allowAllUsers && len(c.Roles.AllowedIDs) == 0
	}
	isGoodUser := isAdmin ||
		allowAllUsers ||
		contains(c.Users.AllowedIDs, req.UserID) ||
		containsAny(c.Roles.AllowedIDs, req.RoleIDs)
	isBadUser := !isGoodUser ||
		contains(c.Users.BlockedIDs, req.UserID) ||
		containsAny(c.Roles.BlockedIDs, req.RoleIDs)

	var isGoodChannel bool
	if req.IsDM {
		isGoodChannel = isAdmin || req.AllowDMs
	} else {
		isGoodChannel = len(c.Channels.AllowedIDs) == 0 ||
			containsAny(c.Channels.AllowedIDs, req.ChannelIDs)
	}
	isBadChannel := !isGoodChannel ||
		containsAny(c.Channels.BlockedIDs, req.ChannelIDs)

	return !isBadUser && !isBadChannel
}

func contains(ids []chat.ID, id chat.ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsAny(ids []chat.ID, candidates []chat.ID) bool {
	for _, candidate := range candidates {
		if contains(ids, candidate) {
			return true
		}
	}
	return false
}
