package utils

import (
	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
)

// RegisterUtilsCommands registers the utility commands as /utils subcommands
func RegisterUtilsCommands(client *discord.ExtendedClient, store database.Store) {
	client.CommandHandler.RegisterGroup(
		"utils",
		"Comandos de utilidad",
		createPingCommand(),
		createStatusCommand(store),
		createHelpCommand(client),
		createStatsCommand(),
	)
}
