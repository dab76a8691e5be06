package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string

	// StoreDriver picks the persistence backend: "postgres" or "memory".
	// The memory driver exists for local runs and demos; it loses everything
	// on restart.
	StoreDriver string

	// AsyncTransfers dispatches execution through the transfer job queue
	// instead of running it inside the request.
	AsyncTransfers bool

	// AdvisoryLocks enables the sorted-pair advisory lock inside each atomic
	// unit. Throughput knob only.
	AdvisoryLocks bool

	WebhookURL    string
	WebhookSecret string
}

// Load reads .env if present, then the environment, applying defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on system env variables")
	}

	return &Config{
		Port:           getEnv("PORT", "3000"),
		Env:            getEnv("ENV", "development"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		StoreDriver:    getEnv("STORE_DRIVER", "postgres"),
		AsyncTransfers: getEnv("ASYNC_TRANSFERS", "false") == "true",
		AdvisoryLocks:  getEnv("ADVISORY_LOCKS", "false") == "true",
		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		WebhookSecret:  getEnv("WEBHOOK_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
