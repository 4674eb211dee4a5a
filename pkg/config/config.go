// Package config provides configuration management for the bot and the dashboard.
// It loads environment variables once and makes them available throughout the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config holds all configuration values
type Config struct {
	// Discord
	BotToken   string
	DevGuildID string

	// OAuth2 (dashboard login)
	ClientID     string
	ClientSecret string
	BaseURL      string

	// Storage
	DatabaseDriver string
	MongoDBURL     string
	DBName         string
	SQLitePath     string

	// MQTT
	MQTTHost     string
	MQTTPort     string
	MQTTUser     string
	MQTTPassword string

	// Web Server
	Port            string
	SessionTTLHours int

	// Environment
	Environment string

	// Webhooks
	ErrorWebhook      string
	LogsWebhook       string
	LogsWebServerHook string
}

var (
	Version   = "Dev-Local"
	BuildTime = "Hoy"
)

// cfg holds the global configuration instance
var (
	cfg     *Config
	cfgOnce sync.Once
)

// resetForTesting resets the configuration for testing purposes.
// This function should only be called from test code.
func resetForTesting() {
	cfg = nil
	cfgOnce = sync.Once{}
}

// loadConfig performs the actual configuration loading
func loadConfig() {
	// Load .env file if it exists (ignoring error if it doesn't)
	_ = godotenv.Load()

	cfg = &Config{
		BotToken:   getEnv("botToken", ""),
		DevGuildID: getEnv("devGuildId", ""),

		ClientID:     getEnv("clientId", ""),
		ClientSecret: getEnv("clientSecret", ""),
		BaseURL:      strings.TrimRight(getEnv("baseUrl", "http://localhost:3000"), "/"),

		DatabaseDriver: strings.ToLower(getEnv("databaseDriver", DriverMongo)),
		MongoDBURL:     getEnv("mongodbUrl", "mongodb://localhost:27017"),
		DBName:         getEnv("dbName", "PancyCommunity"),
		SQLitePath:     getEnv("sqlitePath", "pancycommunity.db"),

		MQTTHost:     getEnv("MQTT_Host", "localhost"),
		MQTTPort:     getEnv("MQTT_Port", "1883"),
		MQTTUser:     getEnv("MQTT_User", ""),
		MQTTPassword: getEnv("MQTT_Password", ""),

		Port:            getEnv("PORT", "3000"),
		SessionTTLHours: getEnvInt("sessionTtlHours", 72),

		Environment: getEnv("enviroment", "dev"),

		ErrorWebhook:      getEnv("errorWebhook", ""),
		LogsWebhook:       getEnv("logsWebhook", ""),
		LogsWebServerHook: getEnv("logsWebServerWebhook", ""),
	}
}

// Load initializes the configuration from environment variables
func Load() (*Config, error) {
	cfgOnce.Do(loadConfig)

	switch cfg.DatabaseDriver {
	case DriverMongo, DriverSQLite:
	default:
		return cfg, fmt.Errorf("databaseDriver desconocido: %q (usa %s o %s)", cfg.DatabaseDriver, DriverMongo, DriverSQLite)
	}
	return cfg, nil
}

// Get returns the current configuration
func Get() *Config {
	// Use sync.Once to ensure thread-safe initialization if Load wasn't called
	cfgOnce.Do(loadConfig)
	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// IsProd returns true if the environment is production
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// SessionTTL returns how long a dashboard login stays valid
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// OAuthRedirectURL is the callback registered on the Discord application
func (c *Config) OAuthRedirectURL() string {
	return c.BaseURL + "/api/auth/callback"
}

// Require returns an error naming every key that has no value.
// Keys use the same names as the environment variables.
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		"botToken":     c.BotToken,
		"devGuildId":   c.DevGuildID,
		"clientId":     c.ClientID,
		"clientSecret": c.ClientSecret,
		"baseUrl":      c.BaseURL,
		"mongodbUrl":   c.MongoDBURL,
		"dbName":       c.DBName,
		"sqlitePath":   c.SQLitePath,
	}

	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("faltan variables de entorno: %s", strings.Join(missing, ", "))
	}
	return nil
}
