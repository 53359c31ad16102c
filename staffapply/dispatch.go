package staffapply

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// interactionKind partitions the dispatch table by interaction type.
type interactionKind string

const (
	kindCommand   interactionKind = "command"
	kindComponent interactionKind = "component"
	kindModal     interactionKind = "modal"
)

// dispatchKey identifies a handler by interaction kind and symbolic ID:
// the command name for slash commands, the custom ID for components and
// modals. Component custom IDs carrying a target after a colon
// (`application_accept:<userID>`) are keyed by the part before the colon.
type dispatchKey struct {
	kind interactionKind
	id   string
}

type interactionHandlerFunc func(ctx context.Context, handler InteractionHandler)

// dispatchKeyFor derives the dispatch key for an incoming interaction.
func dispatchKeyFor(i *discordgo.InteractionCreate) (dispatchKey, bool) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return dispatchKey{kindCommand, i.ApplicationCommandData().Name}, true
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if id, _, found := strings.Cut(customID, ":"); found {
			return dispatchKey{kindComponent, id}, true
		}
		return dispatchKey{kindComponent, customID}, true
	case discordgo.InteractionModalSubmit:
		return dispatchKey{kindModal, i.ModalSubmitData().CustomID}, true
	default:
		return dispatchKey{}, false
	}
}

// componentTarget returns the target portion of a component custom ID,
// or "" if the ID carries none.
func componentTarget(i *discordgo.InteractionCreate) string {
	_, target, _ := strings.Cut(i.MessageComponentData().CustomID, ":")
	return target
}

// buildDispatchTable wires every slash command, component and modal the
// bot registers to its handler.
func (b *StaffApply) buildDispatchTable() map[dispatchKey]interactionHandlerFunc {
	return map[dispatchKey]interactionHandlerFunc{
		{kindCommand, DiscordSlashCommandSetup}:         b.commandSetup,
		{kindCommand, DiscordSlashCommandBlock}:         b.commandBlock,
		{kindCommand, DiscordSlashCommandRemoveBlock}:   b.commandRemoveBlock,
		{kindCommand, DiscordSlashCommandStats}:         b.commandStats,
		{kindCommand, DiscordSlashCommandCheckUser}:     b.commandCheckUser,
		{kindCommand, DiscordSlashCommandClearCooldown}: b.commandClearCooldown,

		{kindComponent, customIDSetupChannelSelect}:  b.setupShowAdminChannelModal,
		{kindComponent, customIDSetupNextAdminRoles}: b.setupShowAdminRolesModal,
		{kindComponent, customIDSetupNextStaffRoles}: b.setupShowStaffRolesModal,
		{kindComponent, customIDSetupNextLogChannel}: b.setupShowLogChannelModal,
		{kindComponent, customIDCompleteSetup}:       b.setupComplete,
		{kindComponent, customIDApply}:               b.applyButton,
		{kindComponent, customIDApplicationAccept}:   b.applicationAccept,
		{kindComponent, customIDApplicationReject}:   b.applicationReject,

		{kindModal, customIDSetupAdminChannelModal}: b.setupSubmitAdminChannel,
		{kindModal, customIDSetupAdminRolesModal}:   b.setupSubmitAdminRoles,
		{kindModal, customIDSetupStaffRolesModal}:   b.setupSubmitStaffRoles,
		{kindModal, customIDSetupLogChannelModal}:   b.setupSubmitLogChannel,
		{kindModal, customIDStaffApplyModal}:        b.applySubmission,
	}
}

// handleInteraction is the single entry point for gateway interactions.
// It records the interaction, then routes it through the dispatch table.
func (b *StaffApply) handleInteraction(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	u := getDiscordUser(i)
	if u == nil {
		handler.Logger().WarnContext(
			ctx,
			"no user found for interaction",
			interactionLogAttrs(*i)...,
		)
		return
	}
	if u.Bot {
		return
	}

	logger := handler.Logger().With(
		slog.Group("interaction", interactionLogAttrs(*i)...),
		"user_id", u.ID,
	)
	ctx = WithLogger(ctx, logger)

	interactionLog := NewInteractionLog(i, u)
	go func() {
		if err := b.writeDB.CreateInteractionLog(
			context.WithoutCancel(ctx),
			interactionLog,
		); err != nil {
			logger.ErrorContext(ctx, "error recording interaction", tint.Err(err))
		}
	}()

	key, ok := dispatchKeyFor(i)
	if !ok {
		logger.WarnContext(ctx, "unhandled interaction type")
		return
	}
	handlerFunc, ok := b.dispatch[key]
	if !ok {
		logger.WarnContext(
			ctx,
			"no handler registered for interaction",
			"kind", string(key.kind),
			"custom_id", key.id,
		)
		return
	}
	handlerFunc(ctx, handler)
}
