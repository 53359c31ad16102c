package staffapply

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSetupStartsWizard(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBot(t)
	guildID := "guild-1"

	i := newCommandInteraction(
		guildID,
		DiscordSlashCommandSetup,
		adminMember("admin-1"),
	)
	handler := newMockHandler(i)
	b.commandSetup(ctx, handler)

	resp := handler.lastResponse(t)
	assert.Equal(t, messageSetupWelcome, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	require.Len(t, resp.Data.Components, 1)
	row := resp.Data.Components[0].(discordgo.ActionsRow)
	button := row.Components[0].(discordgo.Button)
	assert.Equal(t, customIDSetupChannelSelect, button.CustomID)

	temp, err := b.writeDB.TempSettings(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, temp)
	assert.Equal(t, SetupStageAdminChannel, temp.Stage)
}

func TestCommandSetupRequiresPermission(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBot(t)

	i := newCommandInteraction(
		"guild-1",
		DiscordSlashCommandSetup,
		&discordgo.Member{
			User:  &discordgo.User{ID: "user-1"},
			Roles: []string{"some-role"},
		},
	)
	handler := newMockHandler(i)
	b.commandSetup(ctx, handler)

	resp := handler.lastResponse(t)
	assert.Equal(t, messagePermissionDenied, resp.Data.Content)

	temp, err := b.writeDB.TempSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Nil(t, temp)
}

func TestSetupShowModals(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBot(t)

	cases := []struct {
		customID string
		handler  interactionHandlerFunc
		modalID  string
		inputID  string
	}{
		{
			customIDSetupChannelSelect,
			b.setupShowAdminChannelModal,
			customIDSetupAdminChannelModal,
			modalInputAdminChannelID,
		},
		{
			customIDSetupNextAdminRoles,
			b.setupShowAdminRolesModal,
			customIDSetupAdminRolesModal,
			modalInputAdminRoleIDs,
		},
		{
			customIDSetupNextStaffRoles,
			b.setupShowStaffRolesModal,
			customIDSetupStaffRolesModal,
			modalInputStaffRoleIDs,
		},
		{
			customIDSetupNextLogChannel,
			b.setupShowLogChannelModal,
			customIDSetupLogChannelModal,
			modalInputLogChannelID,
		},
	}
	for _, tc := range cases {
		t.Run(
			tc.modalID, func(t *testing.T) {
				i := newComponentInteraction(
					"guild-1",
					tc.customID,
					adminMember("admin-1"),
				)
				handler := newMockHandler(i)
				tc.handler(ctx, handler)

				resp := handler.lastResponse(t)
				assert.Equal(t, discordgo.InteractionResponseModal, resp.Type)
				assert.Equal(t, tc.modalID, resp.Data.CustomID)
				row := resp.Data.Components[0].(discordgo.ActionsRow)
				input := row.Components[0].(discordgo.TextInput)
				assert.Equal(t, tc.inputID, input.CustomID)
				assert.True(t, input.Required)
			},
		)
	}
}

func TestSetupStageProgression(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBot(t)
	guildID := "guild-1"
	admin := adminMember("admin-1")

	setup := newCommandInteraction(guildID, DiscordSlashCommandSetup, admin)
	b.commandSetup(ctx, newMockHandler(setup))

	b.setupSubmitAdminChannel(
		ctx, newMockHandler(
			newModalInteraction(
				guildID,
				customIDSetupAdminChannelModal,
				admin,
				map[string]string{modalInputAdminChannelID: "staffroom-1"},
			),
		),
	)
	temp, err := b.writeDB.TempSettings(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, temp)
	assert.Equal(t, SetupStageAdminRoles, temp.Stage)
	assert.Equal(t, "staffroom-1", temp.Staffroom)

	b.setupSubmitAdminRoles(
		ctx, newMockHandler(
			newModalInteraction(
				guildID,
				customIDSetupAdminRolesModal,
				admin,
				map[string]string{modalInputAdminRoleIDs: "role-1, role-2"},
			),
		),
	)
	temp, err = b.writeDB.TempSettings(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, temp)
	assert.Equal(t, SetupStageStaffRoles, temp.Stage)
	assert.Equal(t, StringList{"role-1", "role-2"}, temp.Roles)

	b.setupSubmitStaffRoles(
		ctx, newMockHandler(
			newModalInteraction(
				guildID,
				customIDSetupStaffRolesModal,
				admin,
				map[string]string{modalInputStaffRoleIDs: "staff-role"},
			),
		),
	)
	temp, err = b.writeDB.TempSettings(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, temp)
	assert.Equal(t, SetupStageLogChannel, temp.Stage)
	assert.Equal(t, StringList{"staff-role"}, temp.StaffIDs)

	logHandler := newMockHandler(
		newModalInteraction(
			guildID,
			customIDSetupLogChannelModal,
			admin,
			map[string]string{modalInputLogChannelID: "log-channel"},
		),
	)
	b.setupSubmitLogChannel(ctx, logHandler)
	temp, err = b.writeDB.TempSettings(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, temp)
	assert.Equal(t, SetupStageConfirm, temp.Stage)
	assert.Equal(t, "log-channel", temp.LogChannelID)

	// the final stage offers the completion button
	resp := logHandler.lastResponse(t)
	row := resp.Data.Components[0].(discordgo.ActionsRow)
	button := row.Components[0].(discordgo.Button)
	assert.Equal(t, customIDCompleteSetup, button.CustomID)
	assert.Equal(t, discordgo.SuccessButton, button.Style)
}

func TestSetupAdvanceWithoutTempSettings(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBot(t)

	handler := newMockHandler(
		newModalInteraction(
			"guild-1",
			customIDSetupAdminChannelModal,
			adminMember("admin-1"),
			map[string]string{modalInputAdminChannelID: "staffroom-1"},
		),
	)
	b.setupSubmitAdminChannel(ctx, handler)

	resp := handler.lastResponse(t)
	assert.Equal(t, messageTempSettingsMissing, resp.Data.Content)
}

func TestSetupComplete(t *testing.T) {
	ctx := context.Background()
	b, session := newTestBot(t)
	guildID := "guild-1"
	admin := adminMember("admin-1")

	require.NoError(
		t, b.writeDB.SaveTempSettings(
			ctx, &TempSettings{
				GuildID:      guildID,
				Staffroom:    "staffroom-1",
				Roles:        StringList{"role-1"},
				StaffIDs:     StringList{"staff-role"},
				LogChannelID: "log-channel",
				Stage:        SetupStageConfirm,
			},
		),
	)

	handler := newMockHandler(
		newComponentInteraction(guildID, customIDCompleteSetup, admin),
	)
	b.setupComplete(ctx, handler)

	settings, err := b.writeDB.ServerSettings(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "staffroom-1", settings.Staffroom)
	assert.Equal(t, StringList{"role-1"}, settings.Roles)
	assert.Equal(t, StringList{"staff-role"}, settings.StaffIDs)
	assert.Equal(t, "log-channel", settings.LogChannelID)

	// the public application embed and button land in the invoking
	// channel, and the completion is announced in the log channel
	require.Len(t, session.channelMessages, 2)
	applyMsg := session.channelMessages[0]
	assert.Equal(t, "channel-1", applyMsg.channelID)
	require.Len(t, applyMsg.data.Embeds, 1)
	assert.Equal(t, b.config.Application.Title, applyMsg.data.Embeds[0].Title)
	assert.Equal(
		t,
		messageApplyEmbedDescription,
		applyMsg.data.Embeds[0].Description,
	)
	row := applyMsg.data.Components[0].(discordgo.ActionsRow)
	button := row.Components[0].(discordgo.Button)
	assert.Equal(t, customIDApply, button.CustomID)

	logMsg := session.channelMessages[1]
	assert.Equal(t, "log-channel", logMsg.channelID)

	// the wizard message is replaced and its button removed
	resp := handler.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Equal(t, messageSetupCompleted, resp.Data.Content)
	assert.Empty(t, resp.Data.Components)

	temp, err := b.writeDB.TempSettings(ctx, guildID)
	require.NoError(t, err)
	assert.Nil(t, temp)
}

func TestSetupCompleteWithoutTempSettings(t *testing.T) {
	ctx := context.Background()
	b, session := newTestBot(t)

	handler := newMockHandler(
		newComponentInteraction(
			"guild-1",
			customIDCompleteSetup,
			adminMember("admin-1"),
		),
	)
	b.setupComplete(ctx, handler)

	resp := handler.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Equal(t, messageTempSettingsMissing, resp.Data.Content)
	assert.Empty(t, session.channelMessages)

	settings, err := b.writeDB.ServerSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Nil(t, settings)
}
