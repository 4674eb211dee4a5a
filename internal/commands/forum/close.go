// Package forum implements /close, which resolves a support thread in a forum channel
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

// createCloseCommand creates the /close command
func (h *handlers) createCloseCommand() *discord.Command {
	return discord.NewCommand(
		"close",
		"Marca este hilo del foro como resuelto",
		"forum",
		h.closeHandler,
	).WithOptions(&discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "ayudante",
		Description: "Quién resolvió tu duda",
		Required:    false,
	}).InGuildOnly()
}

// CanClose reports whether userID may resolve thread: its owner or anyone managing threads
func CanClose(thread *discordgo.Channel, userID string, perms int64) bool {
	if thread.OwnerID == userID {
		return true
	}
	return perms&(discordgo.PermissionManageThreads|discordgo.PermissionAdministrator) != 0
}

// ThreadCreatedAt returns the creation time encoded in the thread snowflake
func ThreadCreatedAt(thread *discordgo.Channel) time.Time {
	created, err := discordgo.SnowflakeTimestamp(thread.ID)
	if err != nil {
		return time.Time{}
	}
	return created
}

// Summary renders the rewards of a resolution
func Summary(fc leveling.ForumClose, res *leveling.ForumResult) string {
	var lines []string
	if res != nil && res.Owner != nil {
		lines = append(lines, fmt.Sprintf("📝 <@%s> +%d XP por cerrar el hilo", fc.OwnerID, res.Owner.NewXp-res.Owner.OldXp))
	}
	if res != nil && res.Helper != nil {
		line := fmt.Sprintf("🤝 <@%s> +%d XP por ayudar", fc.HelperID, res.HelperBonus)
		if res.Fast {
			line += " ⚡ (resolución rápida)"
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "Hilo cerrado."
	}
	return strings.Join(lines, "\n")
}

func (h *handlers) parent(s *discordgo.Session, parentID string) *discordgo.Channel {
	if ch, err := s.State.Channel(parentID); err == nil {
		return ch
	}
	ch, err := s.Channel(parentID)
	if err != nil {
		return nil
	}
	return ch
}

// closeHandler handles the /close command
func (h *handlers) closeHandler(ctx *discord.CommandContext) error {
	thread := ctx.Channel()
	if thread == nil || !thread.IsThread() {
		return ctx.ReplyEphemeral("❌ Usa este comando dentro de un hilo del foro.")
	}
	forum := h.parent(ctx.Session, thread.ParentID)
	if forum == nil || forum.Type != discordgo.ChannelTypeGuildForum {
		return ctx.ReplyEphemeral("❌ Este hilo no pertenece a un foro.")
	}
	if thread.ThreadMetadata != nil && thread.ThreadMetadata.Locked {
		return ctx.ReplyEphemeral("🔒 Este hilo ya está cerrado.")
	}

	user := ctx.User()
	var perms int64
	if m := ctx.Member(); m != nil {
		perms = m.Permissions
	}
	if !CanClose(thread, user.ID, perms) {
		return ctx.ReplyEphemeral("❌ Solo quien abrió el hilo puede cerrarlo.")
	}

	guildID := ctx.Interaction.GuildID
	guild := h.guilds(guildID)
	if guild == nil {
		return ctx.ReplyEphemeral("❌ No encuentro este servidor.")
	}

	fc := leveling.ForumClose{
		ThreadID:  thread.ID,
		ForumID:   forum.ID,
		OwnerID:   thread.OwnerID,
		CreatedAt: ThreadCreatedAt(thread),
	}

	checkCtx, cancelCheck := ctx.Context()
	enabled := h.engine.ForumEnabled(checkCtx, guildID, forum.ID)
	cancelCheck()

	replied := false
	if helper := ctx.GetUserOption("ayudante"); helper != nil {
		fc.HelperID = helper.ID
	} else if enabled {
		helperID, err := h.pickHelper(ctx, thread.ID, user.ID)
		if err != nil {
			return err
		}
		fc.HelperID = helperID
		replied = true
	}
	if fc.HelperID != "" && (fc.HelperID == fc.OwnerID || fc.HelperID == ctx.Session.State.User.ID) {
		fc.HelperID = ""
	}
	fc.ClosedAt = time.Now()

	var embed *discordgo.MessageEmbed
	if enabled {
		awardCtx, cancel := ctx.Context()
		res, err := h.engine.ResolveForumThread(awardCtx, guild, fc)
		cancel()
		if err != nil && !errors.Is(err, leveling.ErrForumXpDisabled) {
			logger.Error(fmt.Sprintf("Error otorgando XP del hilo %s: %v", thread.ID, err), "Forum")
		}
		embed = &discordgo.MessageEmbed{
			Title:       "✅ Hilo resuelto",
			Description: Summary(fc, res),
			Color:       0xBAFFC9,
		}
	} else {
		embed = &discordgo.MessageEmbed{Title: "✅ Hilo resuelto", Description: "Hilo cerrado.", Color: 0xBAFFC9}
	}

	if replied {
		_, err := ctx.Session.FollowupMessageCreate(ctx.Interaction.Interaction, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{embed},
		})
		if err != nil {
			logger.Warn(fmt.Sprintf("No se pudo enviar el resumen: %v", err), "Forum")
		}
	} else if err := ctx.ReplyEmbed(embed); err != nil {
		logger.Warn(fmt.Sprintf("No se pudo enviar el resumen: %v", err), "Forum")
	}

	archived, locked := true, true
	if _, err := ctx.Session.ChannelEditComplex(thread.ID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	}); err != nil {
		logger.Warn(fmt.Sprintf("No se pudo archivar el hilo %s: %v", thread.ID, err), "Forum")
	}
	return nil
}

// pickHelper shows a user picker and waits for the closer to choose.
// It returns an empty ID when the picker times out.
func (h *handlers) pickHelper(ctx *discord.CommandContext, threadID, closerID string) (string, error) {
	customID := leveling.ForumHelperPrefix + threadID
	picker := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.UserSelectMenu,
				CustomID:    customID,
				Placeholder: "Elige a quien te ayudó",
				MaxValues:   1,
			},
		}},
	}
	if err := ctx.ReplyComponents("🤝 ¿Quién resolvió tu duda? Tienes 60 segundos.", picker, false); err != nil {
		return "", err
	}

	onlyCloser := func(i *discordgo.InteractionCreate) bool {
		return i.Member != nil && i.Member.User.ID == closerID
	}
	answer, err := ctx.Client.Collectors.Await(context.Background(), customID, discord.CollectorTimeout, onlyCloser)
	if errors.Is(err, discord.ErrCollectorTimeout) {
		_ = ctx.EditReply("⌛ Nadie fue seleccionado, el hilo se cierra sin ayudante.")
		return "", nil
	}
	if err != nil {
		_ = ctx.EditReply("❌ " + err.Error())
		return "", err
	}

	values := answer.MessageComponentData().Values
	helperID := ""
	if len(values) > 0 {
		helperID = values[0]
	}
	empty := []discordgo.MessageComponent{}
	err = ctx.Session.InteractionRespond(answer.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    "🤝 Ayudante: <@" + helperID + ">",
			Components: empty,
		},
	})
	if err != nil {
		logger.Warn(fmt.Sprintf("No se pudo actualizar el selector: %v", err), "Forum")
	}
	return helperID, nil
}
