package staffapply

import (
	"context"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// memberIsAuthorized reports whether a guild member may manage the
// application system: administrators always pass, otherwise the member
// must hold at least one of the authorized roles.
func memberIsAuthorized(member *discordgo.Member, roles StringList) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, roleID := range member.Roles {
		if roles.Contains(roleID) {
			return true
		}
	}
	return false
}

// hasPermission checks whether the interaction's invoker may manage the
// application system in the interaction's guild. Settings lookup
// failures fail closed to administrator-only.
func (b *StaffApply) hasPermission(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) bool {
	if i.Member == nil {
		return false
	}
	settings, err := b.writeDB.ServerSettings(ctx, i.GuildID)
	if err != nil {
		b.logger.ErrorContext(
			ctx,
			"error loading server settings, falling back to admin-only",
			"guild_id", i.GuildID,
			tint.Err(err),
		)
		return i.Member.Permissions&discordgo.PermissionAdministrator != 0
	}
	var roles StringList
	if settings != nil {
		roles = settings.Roles
	}
	return memberIsAuthorized(i.Member, roles)
}
