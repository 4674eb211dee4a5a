// Package main is the entry point for the PancyCommunity bot.
// It initializes all systems, starts the Discord bot, the scheduled jobs and the dashboard API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/internal/commands"
	"github.com/PancyStudios/PancyCommunityGo/internal/events"
	"github.com/PancyStudios/PancyCommunityGo/pkg/config"
	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/database/sqlstore"
	"github.com/PancyStudios/PancyCommunityGo/pkg/discord"
	"github.com/PancyStudios/PancyCommunityGo/pkg/embeds"
	"github.com/PancyStudios/PancyCommunityGo/pkg/errors"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/mqtt"
	"github.com/PancyStudios/PancyCommunityGo/pkg/onboarding"
	"github.com/PancyStudios/PancyCommunityGo/pkg/scheduler"
	"github.com/PancyStudios/PancyCommunityGo/pkg/web"
)

// gateIdleTTL is how long a member's cooldown and history are kept without messages
const gateIdleTTL = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(cfg.ErrorWebhook, cfg.LogsWebhook)
	defer log.Close()

	logger.System(fmt.Sprintf("Iniciando PancyCommunity %s (%s)...", config.Version, config.BuildTime), "Main")
	logger.Info(fmt.Sprintf("Directorio de trabajo: %s", getCurrentDir()), "Main")

	if err := cfg.Require("botToken"); err != nil {
		logger.Critical(err.Error(), "Main")
		os.Exit(1)
	}

	// Initialize error handler
	var discordClient *discord.ExtendedClient
	errors.Init(cfg.ErrorWebhook, func() {
		if discordClient != nil {
			_ = discordClient.Stop()
		}
	})

	// Initialize storage
	store, err := openStore(cfg)
	if err != nil {
		logger.Critical(fmt.Sprintf("Error abriendo la base de datos: %v", err), "Main")
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn(fmt.Sprintf("Error cerrando la base de datos: %v", err), "Main")
		}
	}()

	// Initialize Discord client
	discordClient, err = discord.Init(cfg.BotToken)
	if err != nil {
		logger.Critical(fmt.Sprintf("Error creating Discord client: %v", err), "Main")
		os.Exit(1)
	}
	session := discordClient.Session
	guilds := leveling.SessionResolver(session)

	// Domain services
	engine := leveling.NewEngine(store, leveling.Options{})
	onboardingService := onboarding.NewService(store, onboarding.SessionDiscord{Session: session})
	embedService := embeds.NewService(store, embeds.SessionDiscord{Session: session})

	commands.RegisterAll(discordClient, &commands.Deps{
		Store:  store,
		Engine: engine,
		Guilds: guilds,
	})
	events.RegisterAll(discordClient, &events.Services{
		Engine:     engine,
		Onboarding: onboardingService,
		Guilds:     guilds,
	})

	// Initialize MQTT
	if cfg.MQTTHost != "" {
		mqttClientID := "pancycommunity"
		if !cfg.IsProd() {
			mqttClientID = "pancycommunity_canary"
		}
		mqttClient := mqtt.Init(cfg.MQTTHost, cfg.MQTTPort, cfg.MQTTUser, cfg.MQTTPassword, mqttClientID)
		defer mqttClient.Destroy()

		engine.AddPublisher(mqttClient)
		mqttClient.RegisterLevelHandlers(store)
	}

	// Initialize web server
	var identity web.Identity
	if err := cfg.Require("clientId", "clientSecret"); err != nil {
		logger.Warn("Login del dashboard deshabilitado: "+err.Error(), "Main")
	} else {
		identity = web.NewDiscordOAuth(cfg.ClientID, cfg.ClientSecret, cfg.OAuthRedirectURL())
	}

	webServer := web.Init(web.Dependencies{
		Store:      store,
		Engine:     engine,
		Onboarding: onboardingService,
		Embeds:     embedService,
		Guilds:     guilds,
		Identity:   identity,
		Bot:        discordClient,
	}, web.Options{
		BaseURL:     cfg.BaseURL,
		WebhookURL:  cfg.LogsWebServerHook,
		SessionTTL:  cfg.SessionTTL(),
		AllowedHost: allowedHost(cfg),
	})
	engine.AddPublisher(webServer.Live())
	webServer.StartAsync(cfg.Port)

	// Scheduled jobs
	jobs := scheduler.New()
	monthly := leveling.NewMonthlyHelperJob(engine, guilds, nil)
	mustSchedule(jobs.Every("monthly-helper", time.Minute, monthly.RunAll))
	mustSchedule(jobs.Every("onboarding-cleanup", 5*time.Minute, func(ctx context.Context) {
		removed, err := onboardingService.Cleanup(ctx)
		if err != nil {
			logger.Error(fmt.Sprintf("Error limpiando hilos de bienvenida: %v", err), "Main")
			return
		}
		if removed > 0 {
			logger.Info(fmt.Sprintf("🧹 %d hilos de bienvenida eliminados", removed), "Main")
		}
	}))
	mustSchedule(jobs.Every("gate-prune", time.Hour, func(ctx context.Context) {
		if n := engine.Gate().Prune(gateIdleTTL); n > 0 {
			logger.Debug(fmt.Sprintf("%d entradas inactivas del filtro anti-spam eliminadas", n), "Main")
		}
	}))

	// Start the bot
	if err := discordClient.Start(); err != nil {
		logger.Critical(fmt.Sprintf("Error starting Discord client: %v", err), "Main")
		os.Exit(1)
	}
	jobs.Start()

	logger.Success("PancyCommunity iniciado correctamente!", "Main")

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	logger.System("Apagando PancyCommunity...", "Main")

	jobs.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(ctx); err != nil {
		logger.Warn(fmt.Sprintf("Error deteniendo el servidor web: %v", err), "Main")
	}
	if err := discordClient.Stop(); err != nil {
		logger.Warn(fmt.Sprintf("Error cerrando la sesión de Discord: %v", err), "Main")
	}
}

// openStore connects the configured backend
func openStore(cfg *config.Config) (database.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		if err := cfg.Require("sqlitePath"); err != nil {
			return nil, err
		}
		return sqlstore.Open(cfg.SQLitePath)
	default:
		if err := cfg.Require("mongodbUrl", "dbName"); err != nil {
			return nil, err
		}
		db, err := database.Init(cfg.MongoDBURL, cfg.DBName)
		if err != nil {
			// the connection is retried in the background; writes fail until then
			logger.Error(fmt.Sprintf("Error connecting to database: %v", err), "Main")
		}
		return database.NewMongoStore(db), nil
	}
}

// allowedHost restricts the dashboard to the host of baseUrl in production
func allowedHost(cfg *config.Config) *regexp.Regexp {
	if !cfg.IsProd() {
		return nil
	}
	host := regexp.MustCompile(`^https?://`).ReplaceAllString(cfg.BaseURL, "")
	return regexp.MustCompile(`^(.+\.)?` + regexp.QuoteMeta(host) + `(:\d+)?$`)
}

func mustSchedule(err error) {
	if err != nil {
		logger.Critical(fmt.Sprintf("Error programando tarea: %v", err), "Main")
		os.Exit(1)
	}
}

// getCurrentDir returns the current working directory
func getCurrentDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return dir
}
