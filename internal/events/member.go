// Package events provides event handlers for member events
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/errors"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/onboarding"
	"github.com/bwmarrin/discordgo"
)

// onboarding plays typed messages, so it gets a generous budget
const welcomeTimeout = 2 * time.Minute

type memberEvents struct {
	svc *Services
}

// RegisterMemberEvents registers all member-related event handlers
func RegisterMemberEvents(client *discord.ExtendedClient, svc *Services) {
	h := &memberEvents{svc: svc}
	client.EventHandler.OnGuildMemberAdd(h.onGuildMemberAdd)
	client.EventHandler.OnGuildMemberUpdate(h.onGuildMemberUpdate)
}

// onGuildMemberAdd opens the onboarding thread of a new member
func (h *memberEvents) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot || h.svc.Onboarding == nil {
		return
	}
	logger.Info(fmt.Sprintf("👋 Nuevo miembro: %s en servidor %s", m.User.Username, m.GuildID), "Member")

	go func() {
		defer errors.RecoverMiddleware()()

		ctx, cancel := context.WithTimeout(context.Background(), welcomeTimeout)
		defer cancel()

		guildName := m.GuildID
		if g, err := s.State.Guild(m.GuildID); err == nil {
			guildName = g.Name
		}

		_, err := h.svc.Onboarding.Welcome(ctx, onboarding.Member{
			GuildID:   m.GuildID,
			GuildName: guildName,
			UserID:    m.User.ID,
			Username:  m.User.Username,
		})
		if err != nil {
			logger.Error(fmt.Sprintf("Error en la bienvenida de %s: %v", m.User.ID, err), "Member")
		}
	}()
}

// onGuildMemberUpdate awards the boost bonus when a member starts boosting
func (h *memberEvents) onGuildMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.User == nil || h.svc.Engine == nil {
		return
	}
	// without the cached member the transition cannot be told apart from a restart
	if m.BeforeUpdate == nil || !leveling.BoostStarted(m.BeforeUpdate, m.Member) {
		return
	}

	guild := h.svc.Guilds(m.GuildID)
	if guild == nil {
		return
	}

	go func() {
		defer errors.RecoverMiddleware()()

		ctx, cancel := context.WithTimeout(context.Background(), discord.DefaultTimeout)
		defer cancel()

		logger.Info(fmt.Sprintf("💎 %s empezó a mejorar %s", m.User.Username, m.GuildID), "Member")
		if _, err := h.svc.Engine.HandleBoostStart(ctx, guild, m.User.ID); err != nil {
			logger.Error(fmt.Sprintf("Error otorgando XP de mejora a %s: %v", m.User.ID, err), "Member")
		}
	}()
}
