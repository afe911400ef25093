// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings read once at startup. Treat it as immutable.
type Config struct {
	// Application
	AppName        string
	AppVersion     string
	AppDescription string
	AppEnv         string
	Debug          bool

	// Logging
	LogLevel  slog.Level
	LogFormat string
	LogFile   string

	// Server
	Host string
	Port int

	// Database
	DBDriver    string
	DBPath      string
	DatabaseURL string

	// Ledger
	TxTimeout    time.Duration
	TxMaxRetries int

	// API
	JWTSecret          string
	RateLimitPerMinute int

	// Notifications
	NotifyWebhookURL string
	NotifyTimeout    time.Duration
}

// Environments.
const (
	EnvDev  = "dev"
	EnvPro  = "pro"
	EnvTest = "test"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatText    = "text"
	LogFormatColored = "colored"
)

// LoadDotEnv loads a .env file into the environment if one exists. Variables
// already set take precedence.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Load reads Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.AppName = getEnvString("APP_NAME", "stockroom")
	cfg.AppVersion = getEnvString("APP_VERSION", "0.1.0")
	cfg.AppDescription = getEnvString("APP_DESCRIPTION", "Hierarchical inventory ledger")
	cfg.AppEnv = strings.ToLower(getEnvString("APP_ENV", EnvDev))
	switch cfg.AppEnv {
	case EnvDev, EnvPro, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be one of dev, pro, test, got %q", cfg.AppEnv))
	}
	cfg.Debug = getEnvBool("DEBUG", false)

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	cfg.LogLevel = level

	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", LogFormatText))
	switch cfg.LogFormat {
	case LogFormatJSON, LogFormatText, LogFormatColored:
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of json, text, colored, got %q", cfg.LogFormat))
	}
	cfg.LogFile = getEnvString("LOG_FILE", "")

	cfg.Host = getEnvString("HOST", "0.0.0.0")
	cfg.Port = getEnvInt("PORT", 8080)

	cfg.DBDriver = strings.ToLower(getEnvString("DB_DRIVER", "sqlite"))
	cfg.DBPath = getEnvString("DB_PATH", "stockroom.sqlite3")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if (cfg.DBDriver == "postgres" || cfg.DBDriver == "pgx") && cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER is postgres"))
	}

	cfg.TxTimeout = getEnvDuration("TX_TIMEOUT", 5*time.Second)
	cfg.TxMaxRetries = getEnvInt("TX_MAX_RETRIES", 3)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)

	cfg.NotifyWebhookURL = os.Getenv("NOTIFY_WEBHOOK_URL")
	cfg.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DBSource returns the path or URL for the configured driver.
func (c *Config) DBSource() string {
	if c.DatabaseURL != "" && c.DBDriver != "sqlite" {
		return c.DatabaseURL
	}
	return c.DBPath
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
