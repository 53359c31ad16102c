package staffapply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendLog(t *testing.T) {
	ctx := context.Background()
	b, session := newTestBot(t)
	guildID := "guild-1"

	// no committed settings: nothing is sent
	b.sendLog(ctx, guildID, "first", logColorSuccess)
	assert.Empty(t, session.channelMessages)

	// settings without a log channel: nothing is sent
	require.NoError(
		t, b.writeDB.SaveServerSettings(
			ctx,
			&ServerSettings{GuildID: guildID, Staffroom: "staffroom-1"},
		),
	)
	b.sendLog(ctx, guildID, "second", logColorSuccess)
	assert.Empty(t, session.channelMessages)

	require.NoError(
		t, b.writeDB.SaveServerSettings(
			ctx, &ServerSettings{
				GuildID:      guildID,
				Staffroom:    "staffroom-1",
				LogChannelID: "log-channel",
			},
		),
	)
	b.sendLog(ctx, guildID, "third", logColorDanger)

	require.Len(t, session.channelMessages, 1)
	msg := session.channelMessages[0]
	assert.Equal(t, "log-channel", msg.channelID)
	require.Len(t, msg.data.Embeds, 1)
	assert.Equal(t, "third", msg.data.Embeds[0].Description)
	assert.Equal(t, logColorDanger, msg.data.Embeds[0].Color)
	assert.NotEmpty(t, msg.data.Embeds[0].Timestamp)
}
