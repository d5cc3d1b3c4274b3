package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Quote provider identifiers accepted in QUOTE_PROVIDER.
const (
	ProviderYahoo   = "yahoo"
	ProviderBinance = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Quote Provider
	QuoteProvider string // "yahoo" or "binance"
	YahooBaseURL  string // Override for the public endpoint, mostly for tests
	APIKey        string // Binance key, optional since market data is public
	SecretKey     string
	IsTestnet     bool

	// Detection
	CheckInterval time.Duration // Zero runs a single detection pass and exits
	QuoteTimeout  time.Duration // Budget for one provider round trip
	HistoryDays   int           // Backfill window for daily bars

	// Database
	DBPath string

	// Logging
	LogLevel      string
	LogFormat     string // "console" or "json"
	LogFilePath   string // Empty disables file logging
	LogMaxSizeMB  int
	LogMaxAgeDays int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Quote Provider
	cfg.QuoteProvider = strings.ToLower(getEnv("QUOTE_PROVIDER", ProviderYahoo))
	if cfg.QuoteProvider != ProviderYahoo && cfg.QuoteProvider != ProviderBinance {
		errs = append(errs, fmt.Sprintf("QUOTE_PROVIDER must be %q or %q", ProviderYahoo, ProviderBinance))
	}
	cfg.YahooBaseURL = getEnv("YAHOO_BASE_URL", "")
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Detection
	checkIntervalSeconds, err := getEnvAsIntRequired("CHECK_INTERVAL_SECONDS", 300)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CHECK_INTERVAL_SECONDS: %v", err))
	} else if checkIntervalSeconds < 0 {
		errs = append(errs, "CHECK_INTERVAL_SECONDS cannot be negative")
	}
	cfg.CheckInterval = time.Duration(checkIntervalSeconds) * time.Second

	quoteTimeoutSeconds, err := getEnvAsIntRequired("QUOTE_TIMEOUT_SECONDS", 15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUOTE_TIMEOUT_SECONDS: %v", err))
	} else if quoteTimeoutSeconds <= 0 {
		errs = append(errs, "QUOTE_TIMEOUT_SECONDS must be positive")
	}
	cfg.QuoteTimeout = time.Duration(quoteTimeoutSeconds) * time.Second

	cfg.HistoryDays, err = getEnvAsIntRequired("HISTORY_DAYS", 365)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HISTORY_DAYS: %v", err))
	} else if cfg.HistoryDays <= 0 {
		errs = append(errs, "HISTORY_DAYS must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trade_journal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "console"))
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		errs = append(errs, `LOG_FORMAT must be "console" or "json"`)
	}
	cfg.LogFilePath = getEnv("LOG_FILE", "")
	cfg.LogMaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", 50)
	cfg.LogMaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", 30)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
