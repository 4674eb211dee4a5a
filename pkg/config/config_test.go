package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set up test environment variables
	os.Setenv("botToken", "test-token")
	os.Setenv("PORT", "3001")
	os.Setenv("enviroment", "test")
	os.Setenv("databaseDriver", "SQLite")
	defer func() {
		os.Unsetenv("botToken")
		os.Unsetenv("PORT")
		os.Unsetenv("enviroment")
		os.Unsetenv("databaseDriver")
	}()

	// Reset global config
	resetForTesting()

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if config.BotToken != "test-token" {
		t.Errorf("BotToken = %v, want %v", config.BotToken, "test-token")
	}

	if config.Port != "3001" {
		t.Errorf("Port = %v, want %v", config.Port, "3001")
	}

	if config.Environment != "test" {
		t.Errorf("Environment = %v, want %v", config.Environment, "test")
	}

	if config.DatabaseDriver != DriverSQLite {
		t.Errorf("DatabaseDriver = %v, want %v", config.DatabaseDriver, DriverSQLite)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	os.Setenv("databaseDriver", "postgres")
	defer os.Unsetenv("databaseDriver")
	resetForTesting()

	if _, err := Load(); err == nil {
		t.Error("Load() should fail for an unknown database driver")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	if got := getEnv("TEST_VAR", "default"); got != "test-value" {
		t.Errorf("getEnv() = %v, want %v", got, "test-value")
	}

	if got := getEnv("NON_EXISTENT_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want %v", got, "default")
	}
}

func TestIsProd(t *testing.T) {
	resetForTesting()
	os.Setenv("enviroment", "prod")
	config, _ := Load()

	if !config.IsProd() {
		t.Error("IsProd() should return true when environment is 'prod'")
	}

	resetForTesting()
	os.Setenv("enviroment", "dev")
	config, _ = Load()

	if config.IsProd() {
		t.Error("IsProd() should return false when environment is not 'prod'")
	}

	os.Unsetenv("enviroment")
}

func TestGet(t *testing.T) {
	resetForTesting()

	// Get should create a new config if none exists
	config := Get()
	if config == nil {
		t.Fatal("Get() returned nil")
	}

	// Get should return the same config on subsequent calls
	config2 := Get()
	if config != config2 {
		t.Error("Get() should return the same config on subsequent calls")
	}
}

func TestDefaultValues(t *testing.T) {
	for _, key := range []string{"botToken", "devGuildId", "mongodbUrl", "dbName", "MQTT_Host", "MQTT_Port", "PORT", "enviroment", "databaseDriver", "sessionTtlHours", "baseUrl"} {
		os.Unsetenv(key)
	}

	resetForTesting()
	config, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if config.MongoDBURL != "mongodb://localhost:27017" {
		t.Errorf("MongoDBURL default = %v, want %v", config.MongoDBURL, "mongodb://localhost:27017")
	}

	if config.DBName != "PancyCommunity" {
		t.Errorf("DBName default = %v, want %v", config.DBName, "PancyCommunity")
	}

	if config.DatabaseDriver != DriverMongo {
		t.Errorf("DatabaseDriver default = %v, want %v", config.DatabaseDriver, DriverMongo)
	}

	if config.Port != "3000" {
		t.Errorf("Port default = %v, want %v", config.Port, "3000")
	}

	if config.SessionTTL() != 72*time.Hour {
		t.Errorf("SessionTTL default = %v, want 72h", config.SessionTTL())
	}

	if config.OAuthRedirectURL() != "http://localhost:3000/api/auth/callback" {
		t.Errorf("OAuthRedirectURL = %v", config.OAuthRedirectURL())
	}
}

func TestRequire(t *testing.T) {
	c := &Config{BotToken: "x", ClientID: "  "}

	if err := c.Require("botToken"); err != nil {
		t.Errorf("Require(botToken) = %v, want nil", err)
	}

	err := c.Require("botToken", "clientId", "clientSecret")
	if err == nil {
		t.Fatal("Require should fail for blank keys")
	}
	if !strings.Contains(err.Error(), "clientId") || !strings.Contains(err.Error(), "clientSecret") {
		t.Errorf("error should name the missing keys, got %v", err)
	}
}
