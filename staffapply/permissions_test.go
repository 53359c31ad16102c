package staffapply

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberIsAuthorized(t *testing.T) {
	roles := StringList{"role-a", "role-b"}

	assert.False(t, memberIsAuthorized(nil, roles))

	admin := &discordgo.Member{
		Permissions: discordgo.PermissionAdministrator,
	}
	assert.True(t, memberIsAuthorized(admin, nil))

	holder := &discordgo.Member{Roles: []string{"role-x", "role-b"}}
	assert.True(t, memberIsAuthorized(holder, roles))

	outsider := &discordgo.Member{Roles: []string{"role-x"}}
	assert.False(t, memberIsAuthorized(outsider, roles))
	assert.False(t, memberIsAuthorized(outsider, nil))
}

func TestHasPermission(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBot(t)
	guildID := "guild-1"

	require.NoError(
		t, b.writeDB.SaveServerSettings(
			ctx, &ServerSettings{
				GuildID: guildID,
				Roles:   StringList{"mod-role"},
			},
		),
	)

	mod := newCommandInteraction(
		guildID,
		DiscordSlashCommandStats,
		&discordgo.Member{
			User:  &discordgo.User{ID: "mod-1"},
			Roles: []string{"mod-role"},
		},
	)
	assert.True(t, b.hasPermission(ctx, mod))

	outsider := newCommandInteraction(
		guildID,
		DiscordSlashCommandStats,
		&discordgo.Member{
			User:  &discordgo.User{ID: "user-1"},
			Roles: []string{"other-role"},
		},
	)
	assert.False(t, b.hasPermission(ctx, outsider))

	admin := newCommandInteraction(
		guildID,
		DiscordSlashCommandStats,
		adminMember("admin-1"),
	)
	assert.True(t, b.hasPermission(ctx, admin))

	// no committed settings: only administrators pass
	unconfigured := newCommandInteraction(
		"guild-unconfigured",
		DiscordSlashCommandStats,
		&discordgo.Member{
			User:  &discordgo.User{ID: "user-2"},
			Roles: []string{"mod-role"},
		},
	)
	assert.False(t, b.hasPermission(ctx, unconfigured))

	noMember := newCommandInteraction(guildID, DiscordSlashCommandStats, nil)
	assert.False(t, b.hasPermission(ctx, noMember))
}
