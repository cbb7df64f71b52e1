package config

import (
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	defaultRosterSize      = 4
	defaultWithdrawPolicy  = "overall"
	defaultCacheMaxEntries = 512
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// A helper function to get a required env var. It will fail if the env var is not set.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return "" // This line is never reached
	}

	cfg := Config{
		DBName: getEnv("DB_NAME"),
		Slack: SlackConfig{
			Token:     getEnv("SLACK_BOT_TOKEN"),
			ChannelID: getEnv("SLACK_CHANNEL_ID"),
		},
		Port: getEnv("PORT"),
		Turso: TursoConfig{
			PrimaryURL: lookupOr("TURSO_PRIMARY_URL", ""),
			AuthToken:  lookupOr("TURSO_AUTH_TOKEN", ""),
		},
		ProjectID: getEnv("GCP_PROJECT"),
		Scheduling: SchedulingConfig{
			RosterSize:     lookupInt("ROSTER_SIZE", defaultRosterSize),
			WithdrawPolicy: lookupOr("WITHDRAW_POLICY", defaultWithdrawPolicy),
		},
		CacheMaxEntries: lookupInt("CACHE_MAX_ENTRIES", defaultCacheMaxEntries),
	}
	return cfg
}

func lookupOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func lookupInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		log.Warn("Ignoring invalid integer env var", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return value
}
