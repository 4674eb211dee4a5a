// Package events provides handlers for message components (select menus, buttons)
package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/onboarding"
	"github.com/bwmarrin/discordgo"
)

type componentEvents struct {
	svc *Services
}

// RegisterComponentHandlers routes component custom IDs to their handlers.
// Slash commands are handled by the client itself.
func RegisterComponentHandlers(client *discord.ExtendedClient, svc *Services) {
	h := &componentEvents{svc: svc}
	client.Collectors.Handle(onboarding.RoleMenuPrefix, h.onRoleMenu)
	client.Collectors.Handle(leveling.ForumHelperPrefix, h.onExpiredPicker)
}

func ephemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Error respondiendo interacción: %v", err), "Interaction")
	}
}

// onRoleMenu applies an onboarding role menu selection
func (h *componentEvents) onRoleMenu(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil || h.svc.Onboarding == nil {
		return
	}
	data := i.MessageComponentData()
	messageID := strings.TrimPrefix(data.CustomID, onboarding.RoleMenuPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), discord.DefaultTimeout)
	defer cancel()

	result, err := h.svc.Onboarding.ApplyRoleSelection(ctx, i.GuildID, i.Member.User.ID, messageID, data.Values)
	if err != nil {
		logger.Warn(fmt.Sprintf("Menú de roles %s: %v", messageID, err), "Interaction")
		ephemeral(s, i, "❌ Este menú ya no está disponible.")
		return
	}

	if len(result.Added) == 0 {
		ephemeral(s, i, "✅ Roles actualizados.")
		return
	}
	mentions := make([]string, 0, len(result.Added))
	for _, id := range result.Added {
		mentions = append(mentions, "<@&"+id+">")
	}
	ephemeral(s, i, "✅ Ahora tienes: "+strings.Join(mentions, ", "))
}

// onExpiredPicker answers helper picks that arrive after the /close collector timed out
func (h *componentEvents) onExpiredPicker(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ephemeral(s, i, "⌛ La selección expiró, usa `/close` de nuevo.")
}
