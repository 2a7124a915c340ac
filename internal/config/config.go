// Package config loads the dashboard configuration from .env and the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	FeedPostgres = "postgres"
	FeedRedis    = "redis"
)

type Config struct {
	Environment string

	Store string
	DBDSN string
	AppID string

	Feed          string
	RedisAddr     string
	RedisPassword string

	JWTSecret  string
	SessionTTL time.Duration
	RolePolicy string

	DashboardEmail    string
	DashboardPassword string

	TelegramToken  string
	TelegramChatID int64

	HTTPAddr string
}

// Load reads .env when present, then the environment, and validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:       getenv("ENV", "development"),
		Store:             getenv("STORE", StoreMemory),
		DBDSN:             os.Getenv("DB_DSN"),
		AppID:             getenv("APP_ID", "default-app-id"),
		Feed:              getenv("FEED", FeedPostgres),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RolePolicy:        getenv("ROLE_POLICY", "fixed"),
		DashboardEmail:    os.Getenv("DASHBOARD_EMAIL"),
		DashboardPassword: os.Getenv("DASHBOARD_PASSWORD"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
	}

	ttl, err := getenvDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = ttl

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORE=postgres")
		}
	default:
		return fmt.Errorf("STORE must be %s or %s, got %q", StoreMemory, StorePostgres, c.Store)
	}

	if c.Feed != FeedPostgres && c.Feed != FeedRedis {
		return fmt.Errorf("FEED must be %s or %s, got %q", FeedPostgres, FeedRedis, c.Feed)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}
	return nil
}

// UsesPostgres reports whether documents and accounts live in Postgres
func (c *Config) UsesPostgres() bool {
	return c.Store == StorePostgres
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
