package staffapply

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Audit log embed colors. State-changing actions use the accent color
// of the action's outcome rather than the configured embed color.
const (
	logColorSuccess = 0x00ff00
	logColorDanger  = 0xff0000
)

// sendLog posts an audit log embed to the guild's configured log
// channel. It silently returns when the guild has no committed settings
// or no log channel, and never propagates errors: audit logging is
// best-effort and must not affect the action being logged.
func (b *StaffApply) sendLog(
	ctx context.Context,
	guildID string,
	description string,
	color int,
) {
	logger, ok := ContextLogger(ctx)
	if !ok || logger == nil {
		logger = b.logger
	}
	settings, err := b.writeDB.ServerSettings(ctx, guildID)
	if err != nil {
		logger.ErrorContext(
			ctx,
			"error loading server settings for audit log",
			"guild_id", guildID,
			tint.Err(err),
		)
		return
	}
	if settings == nil || settings.LogChannelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	_, err = b.discord.channelMessageSendComplex(
		settings.LogChannelID,
		&discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}},
	)
	if err != nil {
		logger.ErrorContext(
			ctx,
			"error sending audit log",
			"guild_id", guildID,
			"log_channel_id", settings.LogChannelID,
			tint.Err(err),
		)
	}
}
