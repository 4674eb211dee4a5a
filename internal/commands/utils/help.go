package utils

import (
	"sort"
	"strings"

	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
)

// createHelpCommand creates the /utils help subcommand. The list is built from the registry
// so it never drifts from the registered commands.
func createHelpCommand(client *discord.ExtendedClient) *discord.Command {
	return discord.NewCommand(
		"help",
		"Muestra información de ayuda",
		"utils",
		func(ctx *discord.CommandContext) error {
			return ctx.ReplyEphemeral(HelpText(client.Commands.All()))
		},
	)
}

// HelpText lists the commands grouped by category
func HelpText(commands map[string]*discord.Command) string {
	byCategory := make(map[string][]string)
	for key, cmd := range commands {
		if cmd.IsDev {
			continue
		}
		usage := "/" + strings.ReplaceAll(key, ".", " ")
		byCategory[cmd.Category] = append(byCategory[cmd.Category], "• `"+usage+"` - "+cmd.Description)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("📖 **Ayuda de PancyCommunity**\n")
	for _, c := range categories {
		lines := byCategory[c]
		sort.Strings(lines)
		b.WriteString("\n**" + c + "**\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
