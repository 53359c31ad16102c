package staffapply

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Setup wizard component and modal custom IDs. The wizard is driven by
// the operator: each modal submission saves its field and replies with
// the button that opens the next stage's modal.
const (
	customIDSetupChannelSelect  = "setup_channel_select"
	customIDSetupNextAdminRoles = "setup_next_admin_roles"
	customIDSetupNextStaffRoles = "setup_next_staff_roles"
	customIDSetupNextLogChannel = "setup_next_log_channel"
	customIDCompleteSetup       = "complete_setup"

	customIDSetupAdminChannelModal = "setup_admin_channel_modal"
	customIDSetupAdminRolesModal   = "setup_admin_roles_modal"
	customIDSetupStaffRolesModal   = "setup_staff_roles_modal"
	customIDSetupLogChannelModal   = "setup_log_channel_modal"

	modalInputAdminChannelID = "admin_channel_id"
	modalInputAdminRoleIDs   = "admin_roles_ids"
	modalInputStaffRoleIDs   = "staff_roles_ids"
	modalInputLogChannelID   = "log_channel_id"
)

const (
	messageSetupWelcome = "مرحبًا بك في إعداد نظام التقديم. " +
		"يرجى النقر على الزر أدناه لبدء عملية الإعداد."
	messageTempSettingsMissing = "لم يتم العثور على إعدادات مؤقتة. " +
		"يرجى إعادة بدء عملية الإعداد."
	messageSetupCompleted = "تم إعداد نظام التقديم بنجاح! " +
		"تم حفظ جميع الإعدادات وإنشاء زر التقديم."
	messageSetupError = "حدث خطأ أثناء إكمال الإعداد. " +
		"يرجى المحاولة مرة أخرى."
	messageApplyEmbedDescription = "أضـغـط فـي الاسـفـل للتقـديـم"
)

// commandSetup starts the setup wizard: it resets the guild's scratch
// row to the first stage and offers the button that opens the admin
// channel modal.
func (b *StaffApply) commandSetup(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	if !b.hasPermission(ctx, i) {
		respondEphemeral(ctx, handler, messagePermissionDenied)
		return
	}

	temp := &TempSettings{GuildID: i.GuildID, Stage: SetupStageAdminChannel}
	if err := b.writeDB.SaveTempSettings(ctx, temp); err != nil {
		handler.Logger().ErrorContext(
			ctx,
			"error initializing temp settings",
			tint.Err(err),
		)
		respondEphemeral(ctx, handler, messageSetupError)
		return
	}

	err := handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: messageSetupWelcome,
				Flags:   discordgo.MessageFlagsEphemeral,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.Button{
								Label:    "تحديد روم الإدارة",
								Style:    discordgo.PrimaryButton,
								CustomID: customIDSetupChannelSelect,
							},
						},
					},
				},
			},
		},
	)
	if err != nil {
		handler.Logger().ErrorContext(ctx, "error starting setup", tint.Err(err))
	}
}

// setupModal builds a single-input modal response.
func setupModal(
	modalID string,
	title string,
	inputID string,
	label string,
	placeholder string,
) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalID,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    inputID,
							Label:       label,
							Placeholder: placeholder,
							Style:       discordgo.TextInputShort,
							Required:    true,
						},
					},
				},
			},
		},
	}
}

func (b *StaffApply) setupShowAdminChannelModal(
	ctx context.Context,
	handler InteractionHandler,
) {
	_ = handler.Respond(
		ctx, setupModal(
			customIDSetupAdminChannelModal,
			"تحديد روم الإدارة",
			modalInputAdminChannelID,
			"أدخل معرف روم الإدارة (ID)",
			"مثال: 123456789012345678",
		),
	)
}

func (b *StaffApply) setupShowAdminRolesModal(
	ctx context.Context,
	handler InteractionHandler,
) {
	_ = handler.Respond(
		ctx, setupModal(
			customIDSetupAdminRolesModal,
			"تحديد الرتب الإدارية",
			modalInputAdminRoleIDs,
			"أدخل معرفات الرتب مفصولة بفواصل",
			"مثال: 123456789,987654321",
		),
	)
}

func (b *StaffApply) setupShowStaffRolesModal(
	ctx context.Context,
	handler InteractionHandler,
) {
	_ = handler.Respond(
		ctx, setupModal(
			customIDSetupStaffRolesModal,
			"تحديد رتب المقبولين",
			modalInputStaffRoleIDs,
			"أدخل معرفات الرتب مفصولة بفواصل",
			"مثال: 123456789,987654321",
		),
	)
}

func (b *StaffApply) setupShowLogChannelModal(
	ctx context.Context,
	handler InteractionHandler,
) {
	_ = handler.Respond(
		ctx, setupModal(
			customIDSetupLogChannelModal,
			"تحديد روم اللوق",
			modalInputLogChannelID,
			"أدخل معرف روم اللوق (ID)",
			"مثال: 123456789012345678",
		),
	)
}

// setupAdvance saves a wizard stage's field and replies with the button
// opening the next stage. The mutate callback applies the submitted
// value to the scratch row.
func (b *StaffApply) setupAdvance(
	ctx context.Context,
	handler InteractionHandler,
	nextStage string,
	savedMessage string,
	nextButtonID string,
	nextButtonLabel string,
	mutate func(temp *TempSettings),
) {
	i := handler.GetInteraction()
	temp, err := b.writeDB.TempSettings(ctx, i.GuildID)
	if err != nil {
		handler.Logger().ErrorContext(
			ctx,
			"error loading temp settings",
			tint.Err(err),
		)
		respondEphemeral(ctx, handler, messageSetupError)
		return
	}
	if temp == nil {
		respondEphemeral(ctx, handler, messageTempSettingsMissing)
		return
	}

	mutate(temp)
	temp.Stage = nextStage
	if err := b.writeDB.SaveTempSettings(ctx, temp); err != nil {
		handler.Logger().ErrorContext(
			ctx,
			"error saving temp settings",
			"stage", nextStage,
			tint.Err(err),
		)
		respondEphemeral(ctx, handler, messageSetupError)
		return
	}

	style := discordgo.PrimaryButton
	if nextButtonID == customIDCompleteSetup {
		style = discordgo.SuccessButton
	}
	_ = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: savedMessage,
				Flags:   discordgo.MessageFlagsEphemeral,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.Button{
								Label:    nextButtonLabel,
								Style:    style,
								CustomID: nextButtonID,
							},
						},
					},
				},
			},
		},
	)
}

func (b *StaffApply) setupSubmitAdminChannel(
	ctx context.Context,
	handler InteractionHandler,
) {
	value := modalInputValue(
		handler.GetInteraction().ModalSubmitData(),
		modalInputAdminChannelID,
	)
	b.setupAdvance(
		ctx,
		handler,
		SetupStageAdminRoles,
		"تم حفظ روم الإدارة. اضغط على الزر أدناه للمتابعة.",
		customIDSetupNextAdminRoles,
		"تحديد الرتب الإدارية",
		func(temp *TempSettings) { temp.Staffroom = value },
	)
}

func (b *StaffApply) setupSubmitAdminRoles(
	ctx context.Context,
	handler InteractionHandler,
) {
	value := modalInputValue(
		handler.GetInteraction().ModalSubmitData(),
		modalInputAdminRoleIDs,
	)
	b.setupAdvance(
		ctx,
		handler,
		SetupStageStaffRoles,
		"تم حفظ الرتب الإدارية. اضغط على الزر أدناه للمتابعة.",
		customIDSetupNextStaffRoles,
		"تحديد رتب المقبولين",
		func(temp *TempSettings) { temp.Roles = parseStringList(value) },
	)
}

func (b *StaffApply) setupSubmitStaffRoles(
	ctx context.Context,
	handler InteractionHandler,
) {
	value := modalInputValue(
		handler.GetInteraction().ModalSubmitData(),
		modalInputStaffRoleIDs,
	)
	b.setupAdvance(
		ctx,
		handler,
		SetupStageLogChannel,
		"تم حفظ رتب المقبولين. اضغط على الزر أدناه للمتابعة.",
		customIDSetupNextLogChannel,
		"تحديد روم اللوق",
		func(temp *TempSettings) { temp.StaffIDs = parseStringList(value) },
	)
}

func (b *StaffApply) setupSubmitLogChannel(
	ctx context.Context,
	handler InteractionHandler,
) {
	value := modalInputValue(
		handler.GetInteraction().ModalSubmitData(),
		modalInputLogChannelID,
	)
	b.setupAdvance(
		ctx,
		handler,
		SetupStageConfirm,
		"تم حفظ روم اللوق. اضغط على الزر أدناه لإكمال الإعداد.",
		customIDCompleteSetup,
		"إكمال الإعداد",
		func(temp *TempSettings) { temp.LogChannelID = value },
	)
}

// setupComplete commits the scratch row to ServerSettings, posts the
// public application embed and button in the invoking channel, and
// deletes the scratch row. The wizard message is updated in place.
func (b *StaffApply) setupComplete(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	updateMessage := func(content string) {
		err := handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseUpdateMessage,
				Data: &discordgo.InteractionResponseData{
					Content:    content,
					Components: []discordgo.MessageComponent{},
				},
			},
		)
		if err != nil {
			logger.ErrorContext(
				ctx,
				"error updating setup message",
				tint.Err(err),
			)
		}
	}

	temp, err := b.writeDB.TempSettings(ctx, i.GuildID)
	if err != nil {
		logger.ErrorContext(ctx, "error loading temp settings", tint.Err(err))
		updateMessage(messageSetupError)
		return
	}
	if temp == nil {
		updateMessage(messageTempSettingsMissing)
		return
	}

	settings := &ServerSettings{
		GuildID:      i.GuildID,
		Staffroom:    temp.Staffroom,
		Roles:        temp.Roles,
		StaffIDs:     temp.StaffIDs,
		LogChannelID: temp.LogChannelID,
	}
	if err = b.writeDB.SaveServerSettings(ctx, settings); err != nil {
		logger.ErrorContext(ctx, "error saving server settings", tint.Err(err))
		updateMessage(messageSetupError)
		return
	}

	title := b.config.Application.Title
	_, err = b.discord.channelMessageSendComplex(
		i.ChannelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       title,
					Description: messageApplyEmbedDescription,
					Color:       b.embedColor,
				},
			},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    title,
							Style:    discordgo.SuccessButton,
							CustomID: customIDApply,
						},
					},
				},
			},
		},
	)
	if err != nil {
		logger.ErrorContext(
			ctx,
			"error posting application button",
			"channel_id", i.ChannelID,
			tint.Err(err),
		)
		updateMessage(messageSetupError)
		return
	}

	updateMessage(messageSetupCompleted)

	u := getDiscordUser(i)
	b.sendLog(
		ctx,
		i.GuildID,
		fmt.Sprintf(
			"تم إعداد نظام التقديم في القناة <#%s> بواسطة %s",
			i.ChannelID,
			u.Username,
		),
		logColorSuccess,
	)

	if err = b.writeDB.DeleteTempSettings(ctx, i.GuildID); err != nil {
		logger.ErrorContext(ctx, "error deleting temp settings", tint.Err(err))
	}
}
