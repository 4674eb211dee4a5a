package forum

import (
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
)

// RegisterForumCommands registers /close
func RegisterForumCommands(client *discord.ExtendedClient, engine *leveling.Engine, guilds leveling.GuildResolver) {
	h := &handlers{engine: engine, guilds: guilds}
	client.CommandHandler.RegisterCommand(h.createCloseCommand())
}

type handlers struct {
	engine *leveling.Engine
	guilds leveling.GuildResolver
}
