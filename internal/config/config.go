// Package config loads process configuration from the environment and the
// company profile from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the process configuration.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	StorageDriver string
	DatabaseURL   string
	DBMaxConns    int
	TxTimeout     time.Duration

	// SnapshotPath is the durable image of the memory store. Empty disables
	// load-on-start and save-on-commit.
	SnapshotPath string

	// CompanyProfile is a YAML file with the company profile and catalogs.
	CompanyProfile string

	ShutdownTimeout time.Duration
}

// Development reports whether the process runs in development mode.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Load reads Config from environment variables.
func Load() (Config, error) {
	cfg := Config{
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnv("APP_PORT", "8080"),
		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBMaxConns:      getEnvInt("DB_MAX_CONNS", 10),
		TxTimeout:       getEnvDuration("TX_STATEMENT_TIMEOUT", 30*time.Second),
		SnapshotPath:    os.Getenv("SNAPSHOT_PATH"),
		CompanyProfile:  os.Getenv("COMPANY_PROFILE"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	switch cfg.StorageDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for storage driver %q", cfg.StorageDriver)
		}
	default:
		return cfg, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
