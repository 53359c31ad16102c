package staffapply

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const messagePermissionDenied = "لا يمكنك استخدام هذا الأمر " +
	"لأنك ليس لديك الصلاحيات أو الرتب المطلوبة."

// respondEphemeral sends a plain ephemeral text reply.
func respondEphemeral(
	ctx context.Context,
	handler InteractionHandler,
	content string,
) {
	_ = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		},
	)
}

// respondEphemeralEmbed sends an ephemeral embed reply.
func respondEphemeralEmbed(
	ctx context.Context,
	handler InteractionHandler,
	embed *discordgo.MessageEmbed,
) {
	_ = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
				Flags:  discordgo.MessageFlagsEphemeral,
			},
		},
	)
}

// targetUserOption returns the command's `user` option, preferring the
// fully resolved user over the bare ID.
func targetUserOption(i *discordgo.InteractionCreate) *discordgo.User {
	opt := discordInteractionOptions(i)[commandOptionUser]
	if opt == nil {
		return nil
	}
	user := opt.UserValue(nil)
	if user == nil {
		return nil
	}
	if resolved := i.ApplicationCommandData().Resolved; resolved != nil {
		if full, ok := resolved.Users[user.ID]; ok {
			return full
		}
	}
	return user
}

// commandBlock permanently bars a user from submitting applications in
// the guild. Blocking an already-blocked user changes nothing.
func (b *StaffApply) commandBlock(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	if !b.hasPermission(ctx, i) {
		respondEphemeral(ctx, handler, messagePermissionDenied)
		return
	}
	user := targetUserOption(i)
	if user == nil {
		respondEphemeral(ctx, handler, "منشن شخص لـ حظره من الامر")
		return
	}

	created, err := b.writeDB.Block(ctx, i.GuildID, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error blocking user", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	if !created {
		respondEphemeral(ctx, handler, "هذا الشخص محظور بالفعل!")
		return
	}

	if err = b.writeDB.IncrementStat(
		ctx,
		i.GuildID,
		columnStatsBlockedUsers,
		1,
	); err != nil {
		logger.ErrorContext(ctx, "error incrementing blocked count", tint.Err(err))
	}

	respondEphemeral(
		ctx,
		handler,
		fmt.Sprintf("تم حظر %s من استخدام نظام التقديم.", user.String()),
	)
	b.sendLog(
		ctx,
		i.GuildID,
		fmt.Sprintf(
			"تم حظر %s من نظام التقديم بواسطة %s",
			userMention(user.ID),
			userMention(getDiscordUser(i).ID),
		),
		logColorDanger,
	)
}

// commandRemoveBlock lifts a user's block. The blocked-users counter is
// monotonic and is not decremented here.
func (b *StaffApply) commandRemoveBlock(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	if !b.hasPermission(ctx, i) {
		respondEphemeral(ctx, handler, messagePermissionDenied)
		return
	}
	user := targetUserOption(i)
	if user == nil {
		respondEphemeral(ctx, handler, "منشن شخص لإزالة الحظر منه")
		return
	}

	removed, err := b.writeDB.Unblock(ctx, i.GuildID, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error unblocking user", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	if !removed {
		respondEphemeral(
			ctx,
			handler,
			fmt.Sprintf("%s ليس محظورًا.", user.String()),
		)
		return
	}

	respondEphemeral(
		ctx,
		handler,
		fmt.Sprintf("تم إزالة الحظر عن %s بنجاح.", user.String()),
	)
	b.sendLog(
		ctx,
		i.GuildID,
		fmt.Sprintf(
			"تم إزالة الحظر عن %s بواسطة %s",
			userMention(user.ID),
			userMention(getDiscordUser(i).ID),
		),
		logColorSuccess,
	)
}

// commandStats shows the guild's aggregate counters. The blocked-users
// field reflects the live blocklist size rather than the monotonic
// counter.
func (b *StaffApply) commandStats(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	if !b.hasPermission(ctx, i) {
		respondEphemeral(ctx, handler, messagePermissionDenied)
		return
	}

	stats, err := b.writeDB.GuildStats(ctx, i.GuildID)
	if err != nil {
		logger.ErrorContext(ctx, "error loading stats", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	blockedCount, err := b.writeDB.BlockedCount(ctx, i.GuildID)
	if err != nil {
		logger.ErrorContext(ctx, "error counting blocked users", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}

	respondEphemeralEmbed(
		ctx, handler, &discordgo.MessageEmbed{
			Title: "📊 إحصائيات نظام التقديم",
			Color: b.embedColor,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "إجمالي التقديمات",
					Value:  fmt.Sprintf("%d", stats.TotalApplications),
					Inline: true,
				},
				{
					Name:   "التقديمات المقبولة",
					Value:  fmt.Sprintf("%d", stats.AcceptedApplications),
					Inline: true,
				},
				{
					Name:   "التقديمات المرفوضة",
					Value:  fmt.Sprintf("%d", stats.RejectedApplications),
					Inline: true,
				},
				{
					Name:   "المستخدمين المحظورين",
					Value:  fmt.Sprintf("%d", blockedCount),
					Inline: true,
				},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	)
}

// commandCheckUser shows a user's application history and block status.
func (b *StaffApply) commandCheckUser(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	if !b.hasPermission(ctx, i) {
		respondEphemeral(ctx, handler, messagePermissionDenied)
		return
	}
	user := targetUserOption(i)
	if user == nil {
		respondEphemeral(ctx, handler, "يرجى تحديد مستخدم للتحقق من معلوماته")
		return
	}

	app, err := b.writeDB.Application(ctx, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error loading application record", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	blocked, err := b.writeDB.IsBlocked(ctx, i.GuildID, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error checking blocklist", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}

	status := "✅ غير محظور"
	if blocked {
		status = "🚫 محظور من التقديم"
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("معلومات المستخدم: %s", user.String()),
		Color: b.embedColor,
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: user.AvatarURL(""),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "الحالة", Value: status, Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if app == nil {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:   "التقديمات",
				Value:  "لم يقم بالتقديم من قبل",
				Inline: true,
			},
		)
		respondEphemeralEmbed(ctx, handler, embed)
		return
	}

	entries, err := b.writeDB.ApplicationEntries(ctx, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error loading application entries", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	lastStatus := app.LastStatus
	if lastStatus == "" {
		lastStatus = "غير معروفة"
	}
	embed.Fields = append(
		embed.Fields,
		&discordgo.MessageEmbedField{
			Name:   "عدد التقديمات",
			Value:  fmt.Sprintf("%d", len(entries)),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "آخر تقديم",
			Value:  fmt.Sprintf("<t:%d:R>", app.LastApplicationTime/1000),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "الحالة الأخيرة",
			Value:  lastStatus,
			Inline: true,
		},
	)
	respondEphemeralEmbed(ctx, handler, embed)
}

// commandClearCooldown resets a user's submission cooldown so they may
// apply again immediately. Users who never applied have no record to
// clear, and none is created.
func (b *StaffApply) commandClearCooldown(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	if !b.hasPermission(ctx, i) {
		respondEphemeral(ctx, handler, messagePermissionDenied)
		return
	}
	user := targetUserOption(i)
	if user == nil {
		respondEphemeral(ctx, handler, "يرجى تحديد مستخدم لإزالة وقت الانتظار عنه")
		return
	}

	cleared, err := b.writeDB.ClearCooldown(ctx, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error clearing cooldown", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	if !cleared {
		respondEphemeral(
			ctx,
			handler,
			fmt.Sprintf("%s لم يقم بالتقديم من قبل.", user.String()),
		)
		return
	}

	respondEphemeral(
		ctx,
		handler,
		fmt.Sprintf(
			"تم إزالة وقت الانتظار عن %s بنجاح. يمكنه التقديم مرة أخرى الآن.",
			user.String(),
		),
	)
	b.sendLog(
		ctx,
		i.GuildID,
		fmt.Sprintf(
			"تم إزالة وقت الانتظار عن %s بواسطة %s",
			userMention(user.ID),
			userMention(getDiscordUser(i).ID),
		),
		b.embedColor,
	)
}
