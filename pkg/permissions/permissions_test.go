package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-go-golems/kuyari/pkg/chat"
)

func TestEmptyConfigAllowsEveryoneInGuilds(t *testing.T) {
	c := &Config{}
	assert.True(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{10}}))
}

func TestEmptyConfigAllowsDMsByDefaultFlag(t *testing.T) {
	c := &Config{}
	assert.True(t, c.Allows(Request{UserID: 1, IsDM: true, AllowDMs: true}))
	assert.False(t, c.Allows(Request{UserID: 1, IsDM: true, AllowDMs: false}))
}

func TestAdminBypassesDMBan(t *testing.T) {
	c := &Config{}
	c.Users.AdminIDs = []chat.ID{7}
	assert.True(t, c.Allows(Request{UserID: 7, IsDM: true, AllowDMs: false}))
	assert.False(t, c.Allows(Request{UserID: 8, IsDM: true, AllowDMs: false}))
}

func TestAllowedUserList(t *testing.T) {
	c := &Config{}
	c.Users.AllowedIDs = []chat.ID{1}

	assert.True(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{10}}))
	assert.False(t, c.Allows(Request{UserID: 2, ChannelIDs: []chat.ID{10}}))
}

func TestAllowedRoleGrantsAccess(t *testing.T) {
	c := &Config{}
	c.Roles.AllowedIDs = []chat.ID{50}

	assert.True(t, c.Allows(Request{UserID: 2, RoleIDs: []chat.ID{50}, ChannelIDs: []chat.ID{10}}))
	assert.False(t, c.Allows(Request{UserID: 2, RoleIDs: []chat.ID{51}, ChannelIDs: []chat.ID{10}}))
}

func TestRoleRestrictionsDoNotApplyInDMs(t *testing.T) {
	// DMs carry no roles, so a role-only allow list must not lock DM users
	// out; only an allowed-user list restricts DMs.
	c := &Config{}
	c.Roles.AllowedIDs = []chat.ID{50}
	assert.True(t, c.Allows(Request{UserID: 2, IsDM: true, AllowDMs: true}))

	c.Users.AllowedIDs = []chat.ID{1}
	assert.False(t, c.Allows(Request{UserID: 2, IsDM: true, AllowDMs: true}))
}

func TestBlockedUserOverridesAllow(t *testing.T) {
	c := &Config{}
	c.Users.AllowedIDs = []chat.ID{1}
	c.Users.BlockedIDs = []chat.ID{1}
	assert.False(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{10}}))
}

func TestBlockedRoleOverridesAllow(t *testing.T) {
	c := &Config{}
	c.Roles.BlockedIDs = []chat.ID{50}
	assert.False(t, c.Allows(Request{UserID: 1, RoleIDs: []chat.ID{50}, ChannelIDs: []chat.ID{10}}))
}

func TestChannelAllowListMatchesParentAndCategory(t *testing.T) {
	c := &Config{}
	c.Channels.AllowedIDs = []chat.ID{100}

	// direct channel, thread parent, and category all satisfy the gate
	assert.True(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{100}}))
	assert.True(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{11, 100}}))
	assert.False(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{11, 12}}))
}

func TestBlockedChannelOverridesAllow(t *testing.T) {
	c := &Config{}
	c.Channels.BlockedIDs = []chat.ID{100}
	assert.False(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{100}}))
	assert.True(t, c.Allows(Request{UserID: 1, ChannelIDs: []chat.ID{101}}))
}

func TestAdminDoesNotBypassChannelBlockInGuild(t *testing.T) {
	c := &Config{}
	c.Users.AdminIDs = []chat.ID{7}
	c.Channels.BlockedIDs = []chat.ID{100}
	assert.False(t, c.Allows(Request{UserID: 7, ChannelIDs: []chat.ID{100}}))
}
