// Package discord provides the command handler for loading and registering commands.
package discord

import (
	"github.com/PancyStudios/PancyCommunityGo/pkg/config"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

// CommandHandler manages command loading and registration
type CommandHandler struct {
	client           *ExtendedClient
	slashCommands    []*discordgo.ApplicationCommand
	slashCommandsDev []*discordgo.ApplicationCommand
}

// NewCommandHandler creates a new CommandHandler
func NewCommandHandler(client *ExtendedClient) *CommandHandler {
	return &CommandHandler{
		client:           client,
		slashCommands:    make([]*discordgo.ApplicationCommand, 0),
		slashCommandsDev: make([]*discordgo.ApplicationCommand, 0),
	}
}

// RegisterCommand adds a top-level command
func (ch *CommandHandler) RegisterCommand(cmd *Command) {
	ch.client.Commands.Set(cmd.Name, cmd)
	ch.add(cmd.ToApplicationCommand(), cmd.IsDev)
	logger.Debug("Comando registrado: "+cmd.Name, "CommandHandler")
}

// RegisterGroup adds a command made of subcommands. Permissions and the dev flag
// are taken from the first subcommand.
func (ch *CommandHandler) RegisterGroup(name, description string, subcommands ...*Command) {
	appCmd := ch.BuildCommandGroup(name, description, subcommands...)
	isDev := false
	if len(subcommands) > 0 {
		first := subcommands[0]
		isDev = first.IsDev
		if first.UserPermissions != 0 {
			perms := first.UserPermissions
			appCmd.DefaultMemberPermissions = &perms
		}
		if first.GuildOnly {
			dm := false
			appCmd.DMPermission = &dm
		}
	}
	ch.add(appCmd, isDev)
	logger.Debug("Grupo registrado: "+name, "CommandHandler")
}

func (ch *CommandHandler) add(appCmd *discordgo.ApplicationCommand, dev bool) {
	if dev {
		ch.slashCommandsDev = append(ch.slashCommandsDev, appCmd)
	} else {
		ch.slashCommands = append(ch.slashCommands, appCmd)
	}
}

// BuildCommandGroup creates a command group with subcommands
func (ch *CommandHandler) BuildCommandGroup(name, description string, subcommands ...*Command) *discordgo.ApplicationCommand {
	options := make([]*discordgo.ApplicationCommandOption, 0, len(subcommands))

	for _, cmd := range subcommands {
		ch.client.Commands.Set(name+"."+cmd.Name, cmd)

		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        cmd.Name,
			Description: cmd.Description,
			Options:     cmd.Options,
		})
	}

	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: description,
		Options:     options,
	}
}

// Global returns the commands registered globally
func (ch *CommandHandler) Global() []*discordgo.ApplicationCommand {
	return ch.slashCommands
}

// Dev returns the commands registered only in the dev guild
func (ch *CommandHandler) Dev() []*discordgo.ApplicationCommand {
	return ch.slashCommandsDev
}

// RegisterCommands overwrites the slash commands known by Discord
func (ch *CommandHandler) RegisterCommands() {
	cfg := config.Get()
	appID := ch.client.Session.State.User.ID

	logger.Info("🔄 Registrando comandos globales...", "CommandHandler")
	if _, err := ch.client.Session.ApplicationCommandBulkOverwrite(appID, "", ch.slashCommands); err != nil {
		logger.Error("Error registrando comandos globales: "+err.Error(), "CommandHandler")
	} else {
		logger.Success("✅ Comandos globales registrados.", "CommandHandler")
	}

	if cfg.DevGuildID == "" || len(ch.slashCommandsDev) == 0 {
		return
	}

	logger.Info("🔄 Registrando comandos de desarrollo en el servidor "+cfg.DevGuildID+"...", "CommandHandler")
	if _, err := ch.client.Session.ApplicationCommandBulkOverwrite(appID, cfg.DevGuildID, ch.slashCommandsDev); err != nil {
		logger.Error("Error registrando comandos de desarrollo: "+err.Error(), "CommandHandler")
		return
	}
	logger.Success("✅ Comandos de desarrollo registrados.", "CommandHandler")
}
