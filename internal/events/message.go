// Package events provides event handlers for message events
package events

import (
	"context"
	"fmt"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/errors"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

type messageEvents struct {
	svc *Services
}

// RegisterMessageEvents registers all message-related event handlers
func RegisterMessageEvents(client *discord.ExtendedClient, svc *Services) {
	h := &messageEvents{svc: svc}
	client.EventHandler.OnMessageCreate(h.onMessageCreate)
}

// onMessageCreate feeds guild messages to the XP engine
func (h *messageEvents) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" || h.svc.Engine == nil {
		return
	}

	if s.State != nil && s.State.User != nil {
		for _, mention := range m.Mentions {
			if mention.ID == s.State.User.ID && len(m.Content) <= len(mention.Mention())+1 {
				h.replyMention(s, m)
				return
			}
		}
	}

	guild := h.svc.Guilds(m.GuildID)
	if guild == nil {
		return
	}

	go func() {
		defer errors.RecoverMiddleware()()

		ctx, cancel := context.WithTimeout(context.Background(), discord.DefaultTimeout)
		defer cancel()

		_, err := h.svc.Engine.ProcessMessage(ctx, guild, leveling.MessageInput{
			UserID:    m.Author.ID,
			ChannelID: m.ChannelID,
			Content:   m.Content,
			Booster:   leveling.IsBooster(m.Member),
		})
		if err != nil {
			logger.Error(fmt.Sprintf("Error procesando XP de %s: %v", m.Author.ID, err), "Message")
		}
	}()
}

func (h *messageEvents) replyMention(s *discordgo.Session, m *discordgo.MessageCreate) {
	embed := &discordgo.MessageEmbed{
		Title:       "👋 ¡Hola!",
		Description: "Usa comandos **slash (/)** para interactuar conmigo.",
		Color:       0xBAE1FF,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "⭐ Nivel", Value: "`/level rank` - Tu XP y rol", Inline: true},
			{Name: "🏆 Top", Value: "`/level top` - Tabla de clasificación", Inline: true},
			{Name: "❓ Ayuda", Value: "`/utils help` - Todos los comandos", Inline: true},
		},
	}
	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, embed); err != nil {
		logger.Debug(fmt.Sprintf("Error enviando respuesta: %v", err), "Message")
	}
}
