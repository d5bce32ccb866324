// Package config provides configuration management for the orchestration server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration (preset storage)
	DatabaseURL string

	// Execution engine configuration
	EngineURL     string
	EngineTimeout time.Duration

	// Catalog refresh interval; zero disables periodic refresh
	CatalogRefreshInterval time.Duration

	// MQTT fleet tick configuration
	MQTTEnabled   bool
	MQTTBroker    string
	MQTTClientID  string
	MQTTTickTopic string

	// CORS configuration
	CORSOrigin string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4100"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "file:./orchestrator.db"),

		// Engine
		EngineURL:     getEnv("ENGINE_URL", "http://localhost:8080"),
		EngineTimeout: getEnvDuration("ENGINE_TIMEOUT_MS", 10000),

		// Catalogs
		CatalogRefreshInterval: getEnvDuration("CATALOG_REFRESH_INTERVAL_MS", 60000),

		// MQTT
		MQTTEnabled:   getEnvBool("MQTT_ENABLED", false),
		MQTTBroker:    getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "lacylights-orchestrator"),
		MQTTTickTopic: getEnv("MQTT_TICK_TOPIC", "lacylights/fleet/tick"),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count into a time.Duration.
func getEnvDuration(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMillis)) * time.Millisecond
}
