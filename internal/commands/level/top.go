package level

import (
	"fmt"
	"strings"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/bwmarrin/discordgo"
)

// createTopCommand creates the /level top subcommand
func (h *handlers) createTopCommand() *discord.Command {
	minPage := 1.0
	return discord.NewCommand(
		"top",
		"Tabla de clasificación del servidor",
		"level",
		h.topHandler,
	).WithOptions(&discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "pagina",
		Description: "Página de la tabla",
		MinValue:    &minPage,
	}).InGuildOnly()
}

// topHandler handles the /level top command
func (h *handlers) topHandler(ctx *discord.CommandContext) error {
	page := int(ctx.GetIntOption("pagina"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	c, cancel := ctx.Context()
	defer cancel()

	members, err := h.store.TopMembers(c, ctx.Interaction.GuildID, pageSize, offset)
	if err != nil {
		_ = ctx.ReplyEphemeral("❌ No se pudo cargar la clasificación.")
		return err
	}
	if len(members) == 0 {
		return ctx.ReplyEphemeral(fmt.Sprintf("📭 No hay nadie en la página %d.", page))
	}

	title := "🏆 Clasificación"
	if g := ctx.Guild(); g != nil {
		title += " de " + g.Name
	}

	return ctx.ReplyEmbed(&discordgo.MessageEmbed{
		Title:       title,
		Description: strings.Join(LeaderboardLines(members, offset), "\n"),
		Color:       0xFFDFBA,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Página %d", page)},
	})
}
