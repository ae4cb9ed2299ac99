package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings read from the environment.
type Config struct {
	Env      string
	LogLevel string

	// Server
	ServerAddr string
	BaseURL    string
	JWTSecret  string

	// Storage
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Delivery
	TelegramBotToken string

	// Moderation
	CatalogueFile         string // empty means the embedded catalogue
	StoreTimeout          time.Duration
	EscalationWorkers     int
	QueueCriticalFollowUp bool
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ServerAddr:       getEnv("SERVER_ADDR", ":8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		DatabaseDSN:      getEnv("DATABASE_DSN", "host=localhost user=user password=password dbname=safeguarddb port=5432 sslmode=disable"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		CatalogueFile:    getEnv("SAFEGUARD_CATALOGUE_FILE", ""),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.EscalationWorkers, err = getInt("ESCALATION_WORKERS", DefaultEscalationWorkers); err != nil {
		return nil, err
	}
	if cfg.EscalationWorkers < 1 {
		return nil, fmt.Errorf("ESCALATION_WORKERS must be positive, got %d", cfg.EscalationWorkers)
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", DefaultStoreTimeout); err != nil {
		return nil, err
	}
	if cfg.QueueCriticalFollowUp, err = getBool("QUEUE_CRITICAL_FOLLOW_UP", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
