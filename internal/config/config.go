// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases (always absolute)
	ProductBookPath string // Path to the product book JSON file
	LogLevel        string
	DevMode         bool

	// Evaluation batching (see internal/work)
	BatchSize  int
	BatchDelay time.Duration

	// Cron schedules, six-field with seconds
	EvaluationSchedule  string
	MaintenanceSchedule string

	// Series cache expiry; zero disables expiry
	SeriesCacheMaxAge time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory to an absolute path and ensure it exists
	dataDir := getEnv("STRUCTURA_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		ProductBookPath:     getEnv("STRUCTURA_PRODUCT_BOOK", filepath.Join(absDataDir, "products.json")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		BatchSize:           getEnvAsInt("EVAL_BATCH_SIZE", 8),
		BatchDelay:          time.Duration(getEnvAsInt("EVAL_BATCH_DELAY_MS", 250)) * time.Millisecond,
		EvaluationSchedule:  getEnv("EVAL_SCHEDULE", "0 30 18 * * MON-FRI"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
		SeriesCacheMaxAge:   time.Duration(getEnvAsInt("SERIES_CACHE_MAX_AGE_HOURS", 24)) * time.Hour,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration values are usable
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("EVAL_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("EVAL_BATCH_DELAY_MS must not be negative")
	}
	return nil
}

// HistoryDBPath returns the path of the price history database
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// LedgerDBPath returns the path of the operations ledger database
func (c *Config) LedgerDBPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// CacheDBPath returns the path of the series cache database
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
