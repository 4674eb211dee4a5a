// Package main provides a utility to sync Discord slash commands.
// It overwrites the commands known by Discord with the ones defined in the bot, so stale
// commands disappear without starting the whole bot.
//
// Usage:
//
//	go run ./cmd/sync-commands [options]
//
// Options:
//
//	-list           List all registered commands (global or guild)
//	-clean          Remove all commands without registering new ones
//	-guild <id>     Target a specific guild instead of global commands
//	-sync           Sync commands (overwrite with the current definitions) - default behavior
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/PancyStudios/PancyCommunityGo/internal/commands"
	"github.com/PancyStudios/PancyCommunityGo/pkg/config"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

func main() {
	// Parse command line flags
	listCmd := flag.Bool("list", false, "List all registered commands")
	cleanCmd := flag.Bool("clean", false, "Remove all commands without registering new ones")
	guildID := flag.String("guild", "", "Target a specific guild (leave empty for global)")
	flag.Bool("sync", true, "Sync commands (overwrite with the current definitions)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(cfg.ErrorWebhook, cfg.LogsWebhook)
	defer log.Close()

	if err := cfg.Require("botToken"); err != nil {
		logger.Critical(err.Error(), "SyncCommands")
		os.Exit(1)
	}

	logger.System("Iniciando utilidad de sincronización de comandos...", "SyncCommands")

	client, err := discord.NewClient(cfg.BotToken)
	if err != nil {
		logger.Critical(fmt.Sprintf("Error creating Discord client: %v", err), "SyncCommands")
		os.Exit(1)
	}

	// REST only: the application ID comes from /users/@me, no gateway needed
	me, err := client.Session.User("@me")
	if err != nil {
		logger.Critical(fmt.Sprintf("Error connecting to Discord: %v", err), "SyncCommands")
		os.Exit(1)
	}
	logger.Success("Conectado a Discord como "+me.Username, "SyncCommands")

	// Only the definitions are needed; handlers never run here
	commands.RegisterAll(client, &commands.Deps{})

	switch {
	case *listCmd:
		listCommands(client.Session, me.ID, *guildID)
	case *cleanCmd:
		overwrite(client.Session, me.ID, *guildID, nil)
	default:
		defs := client.CommandHandler.Global()
		if *guildID != "" && *guildID == cfg.DevGuildID {
			defs = client.CommandHandler.Dev()
		}
		overwrite(client.Session, me.ID, *guildID, defs)
	}

	logger.Success("Operación completada exitosamente", "SyncCommands")
}

func scope(guildID string) string {
	if guildID == "" {
		return "globales"
	}
	return "del servidor " + guildID
}

// listCommands lists all commands registered with Discord
func listCommands(s *discordgo.Session, appID, guildID string) {
	logger.Info("📋 Listando comandos "+scope(guildID)+"...", "SyncCommands")

	cmds, err := s.ApplicationCommands(appID, guildID)
	if err != nil {
		logger.Error(fmt.Sprintf("Error obteniendo comandos: %v", err), "SyncCommands")
		return
	}
	if len(cmds) == 0 {
		logger.Info("No hay comandos registrados", "SyncCommands")
		return
	}

	logger.Info(fmt.Sprintf("Comandos encontrados: %d", len(cmds)), "SyncCommands")
	for i, cmd := range cmds {
		logger.Info(fmt.Sprintf("  %d. /%s - %s (ID: %s)", i+1, cmd.Name, cmd.Description, cmd.ID), "SyncCommands")
	}
}

// overwrite replaces the commands of the scope with defs. Empty defs removes them all.
func overwrite(s *discordgo.Session, appID, guildID string, defs []*discordgo.ApplicationCommand) {
	if defs == nil {
		defs = []*discordgo.ApplicationCommand{}
	}
	logger.Info(fmt.Sprintf("🔄 Sobrescribiendo comandos %s con %d definiciones...", scope(guildID), len(defs)), "SyncCommands")

	registered, err := s.ApplicationCommandBulkOverwrite(appID, guildID, defs)
	if err != nil {
		logger.Error(fmt.Sprintf("Error sincronizando comandos: %v", err), "SyncCommands")
		os.Exit(1)
	}
	for _, cmd := range registered {
		logger.Debug("  /"+cmd.Name+" ("+cmd.ID+")", "SyncCommands")
	}
	logger.Success(fmt.Sprintf("✅ %d comandos %s sincronizados", len(registered), scope(guildID)), "SyncCommands")
}
