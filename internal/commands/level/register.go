package level

import (
	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
)

// RegisterLevelCommands registers /level rank and /level top
func RegisterLevelCommands(client *discord.ExtendedClient, store database.Store) {
	h := &handlers{store: store}

	client.CommandHandler.RegisterGroup(
		"level",
		"Niveles y experiencia",
		h.createRankCommand(),
		h.createTopCommand(),
	)
}

type handlers struct {
	store database.Store
}
