// Package events provides a registry for organizing bot events.
// Events are organized by category (ready, guild, member, message, component, shard).
package events

import (
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/onboarding"
)

// Services are the domain services the event handlers drive
type Services struct {
	Engine     *leveling.Engine
	Onboarding *onboarding.Service
	Guilds     leveling.GuildResolver
}

// RegisterAll registers all events with the Discord client
func RegisterAll(client *discord.ExtendedClient, svc *Services) {
	logger.System("📋 Registrando eventos del bot...", "Events")

	RegisterReadyEvent(client, svc)
	RegisterGuildEvents(client)
	RegisterMemberEvents(client, svc)
	RegisterMessageEvents(client, svc)
	RegisterComponentHandlers(client, svc)
	RegisterShardEvents(client)

	logger.Success("✅ Todos los eventos registrados correctamente", "Events")
}
