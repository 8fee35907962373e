package main

import (
	"fmt"
	"os"
	"time"

	"pantry/internal/core/types"
)

// Config is read from the environment once at start.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	// Storage is "memory" or "postgres".
	Storage     string
	DatabaseURL string
	DBMaxConns  int

	// SnapshotPath persists the memory store between restarts. Empty disables it.
	SnapshotPath string
	// CatalogSeed is a JSON catalog loaded at start when set.
	CatalogSeed string

	LowStockThreshold types.Quantity
	LowStockRule      string

	IdempotencyTTL time.Duration
}

func loadConfig() Config {
	cfg := Config{
		Env:               getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnv("APP_PORT", "8080"),
		Storage:           getEnv("STORAGE", "memory"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 10),
		SnapshotPath:      getEnv("SNAPSHOT_PATH", ""),
		CatalogSeed:       getEnv("CATALOG_SEED", ""),
		LowStockThreshold: getEnvDecimal("LOW_STOCK_THRESHOLD", types.MustQuantity("1")),
		LowStockRule:      getEnv("LOW_STOCK_RULE", ""),
		IdempotencyTTL:    getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}
	if cfg.Storage == "postgres" {
		cfg.DatabaseURL = mustEnv("DATABASE_URL")
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue types.Quantity) types.Quantity {
	if value := os.Getenv(key); value != "" {
		if q, err := types.ParseQuantity(value); err == nil {
			return q
		}
	}
	return defaultValue
}
