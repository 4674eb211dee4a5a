package utils

import (
	"fmt"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/bwmarrin/discordgo"
)

// createPingCommand creates the /utils ping subcommand
func createPingCommand() *discord.Command {
	return discord.NewCommand(
		"ping",
		"Comprueba la latencia del bot",
		"utils",
		pingHandler,
	)
}

// pingMessage renders the gateway heartbeat and the interaction round trip
func pingMessage(gateway, roundTrip time.Duration) string {
	return fmt.Sprintf("🏓 Pong!\n• Gateway: %dms\n• Interacción: %dms", gateway.Milliseconds(), roundTrip.Milliseconds())
}

// pingHandler handles the /utils ping command
func pingHandler(ctx *discord.CommandContext) error {
	var roundTrip time.Duration
	if created, err := discordgo.SnowflakeTimestamp(ctx.Interaction.ID); err == nil {
		roundTrip = time.Since(created)
	}
	return ctx.Reply(pingMessage(ctx.Client.Session.HeartbeatLatency(), roundTrip))
}
