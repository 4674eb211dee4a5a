// Package events provides event handlers for the bot
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

const readyStatus = "⭐ Subiendo de nivel | /level rank"

// RegisterReadyEvent registers the ready event handler
func RegisterReadyEvent(client *discord.ExtendedClient, svc *Services) {
	client.EventHandler.OnReady(func(s *discordgo.Session, r *discordgo.Ready) {
		onReady(s, r, svc)
	})
}

// ReadySummary counts how the connected guilds are configured
type ReadySummary struct {
	Guilds     int
	Leveling   int
	Onboarding int
}

// summarize loads the configuration of every guild in the ready payload
func summarize(ctx context.Context, svc *Services, guilds []*discordgo.Guild) ReadySummary {
	summary := ReadySummary{Guilds: len(guilds)}
	if svc == nil {
		return summary
	}
	for _, g := range guilds {
		if svc.Engine != nil {
			if cfg, err := svc.Engine.Config(ctx, g.ID); err == nil && cfg.Enabled {
				summary.Leveling++
			}
		}
		if svc.Onboarding != nil {
			if cfg, err := svc.Onboarding.Config(ctx, g.ID); err == nil && cfg.Enabled {
				summary.Onboarding++
			}
		}
	}
	return summary
}

// onReady is called when the bot successfully connects to Discord
func onReady(s *discordgo.Session, r *discordgo.Ready, svc *Services) {
	logger.Success(fmt.Sprintf("✅ Bot conectado: %s", r.User.Username), "Ready")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	summary := summarize(ctx, svc, r.Guilds)
	logger.Info(fmt.Sprintf("📊 Conectado a %d servidores (%d con niveles, %d con bienvenidas)",
		summary.Guilds, summary.Leveling, summary.Onboarding), "Ready")

	if err := s.UpdateGameStatus(0, readyStatus); err != nil {
		logger.Error(fmt.Sprintf("Error estableciendo estado: %v", err), "Ready")
	}
}
