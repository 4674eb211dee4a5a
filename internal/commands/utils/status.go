package utils

import (
	"fmt"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
)

// createStatusCommand creates the /utils status subcommand
func createStatusCommand(store database.Store) *discord.Command {
	return discord.NewCommand(
		"status",
		"Muestra el estado del bot",
		"utils",
		func(ctx *discord.CommandContext) error {
			c, cancel := ctx.Context()
			defer cancel()
			dbStatus, _ := store.Status(c)

			return ctx.Reply(fmt.Sprintf(
				"📊 **Estado del Bot**\n"+
					"• Bot: 🟢 Online\n"+
					"• Base de datos: %s\n"+
					"• Servidores: %d",
				dbStatus,
				ctx.Client.GuildCount(),
			))
		},
	)
}
