package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// placeholderCronSecret is what CRON_SECRET falls back to when unset. It is
// only tolerated outside production.
const placeholderCronSecret = "change-me"

// Config holds the application configuration.
type Config struct {
	AppEnv       string
	Debug        bool
	Version      string
	BotToken     string
	AdminUserID  int64
	RedisURL     string
	CronSecret   string
	CronInterval time.Duration // zero disables the internal ticker
	ListenAddr   string
	PublicURL    string // when set, the webhook is registered at startup
	SentryDSN    string
	MongoDBURI   string // optional, enables the audit log
	MongoDBName  string
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	adminIDStr := getEnv("ADMIN_USER_ID", "")
	adminID, err := strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil && adminIDStr != "" {
		return nil, fmt.Errorf("invalid ADMIN_USER_ID: %w", err)
	}

	var cronInterval time.Duration
	if raw := getEnv("CRON_INTERVAL", ""); raw != "" {
		cronInterval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CRON_INTERVAL: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Debug:        debug,
		Version:      getEnv("VERSION", "dev"),
		BotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminUserID:  adminID,
		RedisURL:     getEnv("REDIS_URL", ""),
		CronSecret:   getEnv("CRON_SECRET", placeholderCronSecret),
		CronInterval: cronInterval,
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),
		PublicURL:    getEnv("PUBLIC_URL", ""),
		SentryDSN:    getEnv("SENTRY_DSN", ""),
		MongoDBURI:   getEnv("MONGODB_URI", ""),
		MongoDBName:  getEnv("MONGODB_DATABASE", ""),
	}

	// Basic validation for essential variables
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.AdminUserID == 0 {
		return nil, fmt.Errorf("ADMIN_USER_ID is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.CronSecret == placeholderCronSecret {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("CRON_SECRET must be set in production")
		}
		log.Println("Warning: CRON_SECRET is not set, using placeholder. Do not deploy like this.")
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.MongoDBURI == "" {
		log.Println("Warning: MONGODB_URI is not set. Broadcast audit log disabled.")
	} else if cfg.MongoDBName == "" {
		return nil, fmt.Errorf("MONGODB_DATABASE is required when MONGODB_URI is set")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
