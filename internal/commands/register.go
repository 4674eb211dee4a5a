// Package commands provides a registry for organizing bot commands.
// Commands are organized in subdirectories by category (level, forum, utils).
package commands

import (
	"github.com/PancyStudios/PancyCommunityGo/internal/commands/forum"
	"github.com/PancyStudios/PancyCommunityGo/internal/commands/level"
	"github.com/PancyStudios/PancyCommunityGo/internal/commands/utils"
	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
)

// Deps are the services commands read from
type Deps struct {
	Store  database.Store
	Engine *leveling.Engine
	Guilds leveling.GuildResolver
}

// RegisterAll registers all commands with the Discord client
func RegisterAll(client *discord.ExtendedClient, deps *Deps) {
	// /level rank, /level top
	level.RegisterLevelCommands(client, deps.Store)

	// /close
	forum.RegisterForumCommands(client, deps.Engine, deps.Guilds)

	// /utils ping, /utils status, /utils stats, /utils help
	utils.RegisterUtilsCommands(client, deps.Store)
}
