package staffapply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Application flow custom IDs. Accept/reject button IDs carry the
// applicant's user ID after the colon.
const (
	customIDApply             = "apply"
	customIDStaffApplyModal   = "staff_apply"
	customIDApplicationAccept = "application_accept"
	customIDApplicationReject = "application_reject"
)

const (
	messageUserBlocked = "أنت محظور من التقديم ولا يمكنك التقديم أبدًا."
	messageOnCooldown  = "لا يمكنك التقديم الآن. " +
		"يجب الانتظار %d ساعة و %d دقيقة قبل التقديم مرة أخرى."
	messageApplicationSubmitted = "تم إرسال تقديمك بنجاح! " +
		"سيتم مراجعته من قبل الإدارة."
	messageApplicationError = "حدث خطأ أثناء إرسال تقديمك. " +
		"يرجى المحاولة مرة أخرى."
)

// applicationQuestion pairs a modal input ID with its prompt. The same
// labels are reused as field names on the review embed.
type applicationQuestion struct {
	id    string
	label string
}

var applicationQuestions = []applicationQuestion{
	{"q1", "ما هو اسمك؟"},
	{"q2", "كم عمرك؟"},
	{"q3", "ما هي خبراتك السابقة في الإدارة؟"},
	{"q4", "كم ساعة يمكنك التواجد يوميًا؟"},
	{"q5", "لماذا تريد الانضمام إلى الإدارة؟"},
}

// applyButton gates the public application button. Blocked users are
// rejected outright, users on cooldown are told the remaining wait, and
// everyone else is shown the application modal.
func (b *StaffApply) applyButton(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	u := getDiscordUser(i)
	logger := handler.Logger()

	blocked, err := b.writeDB.IsBlocked(ctx, i.GuildID, u.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error checking blocklist", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	if blocked {
		respondEphemeral(ctx, handler, messageUserBlocked)
		return
	}

	app, err := b.writeDB.Application(ctx, u.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error loading application record", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	if app != nil {
		remaining := cooldownRemaining(
			app.LastApplicationTime,
			b.cooldown,
			time.Now(),
		)
		if remaining > 0 {
			hours, minutes := remainingHoursMinutes(remaining)
			respondEphemeral(
				ctx,
				handler,
				fmt.Sprintf(messageOnCooldown, hours, minutes),
			)
			return
		}
	}

	components := make(
		[]discordgo.MessageComponent,
		0,
		len(applicationQuestions),
	)
	for n, q := range applicationQuestions {
		style := discordgo.TextInputShort
		if n >= 2 {
			style = discordgo.TextInputParagraph
		}
		components = append(
			components, discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: q.id,
						Label:    q.label,
						Style:    style,
						Required: true,
					},
				},
			},
		)
	}
	_ = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID:   customIDStaffApplyModal,
				Title:      "التـقديـم لللأدارة",
				Components: components,
			},
		},
	)
}

// applySubmission records a submitted application form, bumps the
// guild's submission counter, and posts the review embed to the
// configured staffroom.
func (b *StaffApply) applySubmission(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	u := getDiscordUser(i)
	logger := handler.Logger()
	data := i.ModalSubmitData()

	entry := &ApplicationEntry{
		UserID:      u.ID,
		GuildID:     i.GuildID,
		SubmittedAt: time.Now().UnixMilli(),
		Q1:          modalInputValue(data, "q1"),
		Q2:          modalInputValue(data, "q2"),
		Q3:          modalInputValue(data, "q3"),
		Q4:          modalInputValue(data, "q4"),
		Q5:          modalInputValue(data, "q5"),
	}
	if err := b.writeDB.RecordSubmission(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "error recording submission", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}
	if err := b.writeDB.IncrementStat(
		ctx,
		i.GuildID,
		columnStatsTotalApplications,
		1,
	); err != nil {
		logger.ErrorContext(ctx, "error incrementing submission count", tint.Err(err))
	}

	respondEphemeral(ctx, handler, messageApplicationSubmitted)

	if err := b.postReviewEmbed(ctx, i.GuildID, u, entry); err != nil {
		logger.ErrorContext(ctx, "error posting review embed", tint.Err(err))
	}

	b.sendLog(
		ctx,
		i.GuildID,
		fmt.Sprintf("قام %s بإرسال تقديم جديد", userMention(u.ID)),
		b.embedColor,
	)
}

// postReviewEmbed sends the submitted answers to the staffroom with
// accept/reject buttons targeting the applicant.
func (b *StaffApply) postReviewEmbed(
	ctx context.Context,
	guildID string,
	u *discordgo.User,
	entry *ApplicationEntry,
) error {
	settings, err := b.writeDB.ServerSettings(ctx, guildID)
	if err != nil {
		return err
	}
	if settings == nil || settings.Staffroom == "" {
		return fmt.Errorf("no staffroom configured for guild %s", guildID)
	}

	answers := []string{entry.Q1, entry.Q2, entry.Q3, entry.Q4, entry.Q5}
	fields := make(
		[]*discordgo.MessageEmbedField,
		0,
		len(applicationQuestions),
	)
	for n, q := range applicationQuestions {
		value := answers[n]
		if value == "" {
			value = "-"
		}
		fields = append(
			fields, &discordgo.MessageEmbedField{
				Name:  q.label,
				Value: truncate(value, 1024),
			},
		)
	}

	_, err = b.discord.channelMessageSendComplex(
		settings.Staffroom, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "تقديم جديد",
					Description: fmt.Sprintf("تقديم من %s", userMention(u.ID)),
					Color:       b.embedColor,
					Fields:      fields,
					Timestamp:   time.Now().UTC().Format(time.RFC3339),
				},
			},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label: "قبول",
							Style: discordgo.SuccessButton,
							CustomID: fmt.Sprintf(
								"%s:%s",
								customIDApplicationAccept,
								u.ID,
							),
						},
						discordgo.Button{
							Label: "رفض",
							Style: discordgo.DangerButton,
							CustomID: fmt.Sprintf(
								"%s:%s",
								customIDApplicationReject,
								u.ID,
							),
						},
					},
				},
			},
		},
	)
	return err
}

// applicationAccept handles the staffroom accept button: it records the
// decision, bumps the accepted counter, grants the configured staff
// roles, and clears the review message's buttons.
func (b *StaffApply) applicationAccept(
	ctx context.Context,
	handler InteractionHandler,
) {
	b.decideApplication(ctx, handler, ApplicationStatusAccepted)
}

// applicationReject handles the staffroom reject button.
func (b *StaffApply) applicationReject(
	ctx context.Context,
	handler InteractionHandler,
) {
	b.decideApplication(ctx, handler, ApplicationStatusRejected)
}

func (b *StaffApply) decideApplication(
	ctx context.Context,
	handler InteractionHandler,
	status string,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	if !b.hasPermission(ctx, i) {
		respondEphemeral(ctx, handler, messagePermissionDenied)
		return
	}

	applicantID := componentTarget(i)
	if applicantID == "" {
		logger.WarnContext(ctx, "decision button without applicant id")
		return
	}
	logger = logger.With("applicant_id", applicantID, "status", status)

	if err := b.writeDB.SetApplicationStatus(
		ctx,
		applicantID,
		status,
	); err != nil {
		logger.ErrorContext(ctx, "error recording decision", tint.Err(err))
		respondEphemeral(ctx, handler, messageApplicationError)
		return
	}

	accepted := status == ApplicationStatusAccepted
	statColumn := columnStatsRejectedApplications
	if accepted {
		statColumn = columnStatsAcceptedApplications
	}
	if err := b.writeDB.IncrementStat(ctx, i.GuildID, statColumn, 1); err != nil {
		logger.ErrorContext(ctx, "error incrementing decision count", tint.Err(err))
	}

	if accepted {
		b.grantStaffRoles(ctx, logger, i.GuildID, applicantID)
	}

	// Clearing the buttons makes the first decision final.
	decision := fmt.Sprintf(
		"%s\n\n**القرار:** %s بواسطة %s",
		reviewDescription(i),
		status,
		userMention(getDiscordUser(i).ID),
	)
	err := handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    decision,
				Components: []discordgo.MessageComponent{},
			},
		},
	)
	if err != nil {
		logger.ErrorContext(ctx, "error updating review message", tint.Err(err))
	}

	logColor := logColorDanger
	if accepted {
		logColor = logColorSuccess
	}
	b.sendLog(
		ctx,
		i.GuildID,
		fmt.Sprintf(
			"تم تحديث حالة تقديم %s إلى: %s",
			userMention(applicantID),
			status,
		),
		logColor,
	)
}

// reviewDescription pulls the description off the review message's
// embed, so the decision note keeps the applicant mention visible.
func reviewDescription(i *discordgo.InteractionCreate) string {
	if i.Message == nil || len(i.Message.Embeds) == 0 {
		return ""
	}
	return i.Message.Embeds[0].Description
}

// grantStaffRoles adds each configured staff role to an accepted
// applicant. Individual failures are logged and skipped.
func (b *StaffApply) grantStaffRoles(
	ctx context.Context,
	logger *slog.Logger,
	guildID string,
	userID string,
) {
	settings, err := b.writeDB.ServerSettings(ctx, guildID)
	if err != nil {
		logger.ErrorContext(
			ctx,
			"error loading settings for role grant",
			tint.Err(err),
		)
		return
	}
	if settings == nil {
		return
	}
	for _, roleID := range settings.StaffIDs {
		if err := b.discord.session.GuildMemberRoleAdd(
			guildID,
			userID,
			roleID,
		); err != nil {
			logger.ErrorContext(
				ctx,
				"error granting staff role",
				"role_id", roleID,
				tint.Err(err),
			)
		}
	}
}
