package level

import (
	"errors"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/bwmarrin/discordgo"
)

// createRankCommand creates the /level rank subcommand
func (h *handlers) createRankCommand() *discord.Command {
	return discord.NewCommand(
		"rank",
		"Muestra la XP y el rol de un miembro",
		"level",
		h.rankHandler,
	).WithOptions(&discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "usuario",
		Description: "Miembro a consultar",
		Required:    false,
	}).InGuildOnly()
}

// rankHandler handles the /level rank command
func (h *handlers) rankHandler(ctx *discord.CommandContext) error {
	user := ctx.GetUserOption("usuario")
	if user == nil {
		user = ctx.User()
	}
	if user.Bot {
		return ctx.ReplyEphemeral("🤖 Los bots no ganan experiencia.")
	}

	c, cancel := ctx.Context()
	defer cancel()
	guildID := ctx.Interaction.GuildID

	member, err := h.store.GetMember(c, guildID, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		return ctx.ReplyEphemeral("📭 <@" + user.ID + "> todavía no tiene experiencia.")
	}
	if err != nil {
		_ = ctx.ReplyEphemeral("❌ No se pudo consultar la experiencia.")
		return err
	}

	rank, err := h.store.MemberRank(c, guildID, user.ID)
	if err != nil {
		return err
	}
	roles, err := h.store.ListLevelRoles(c, guildID)
	if err != nil {
		return err
	}

	return ctx.ReplyEmbed(rankEmbed(user, member, rank, roles))
}
