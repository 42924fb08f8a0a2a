package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port           string
	DBDriver       string // sqlite, postgres or memory
	DatabaseDSN    string
	KafkaBrokers   []string
	KafkaTopic     string
	CurrencySuffix string
	LogLevel       slog.Level
	LogFormat      string
	Env            string
	MigrateOnStart bool
}

// Load reads the configuration from the environment with defaults.
// Precedence: explicit env var > .env file (if loaded by the caller) > default.
func Load() Config {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", "sqlite"))
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "./credit.db")
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "credit_ledger_events")
	cfg.CurrencySuffix = getEnv("CURRENCY_SUFFIX", "DA")
	cfg.LogLevel = parseLevel(getEnv("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.MigrateOnStart = ParseBool("MIGRATE_ON_START", true)
	return cfg
}

// NewLogger builds the process logger described by the config.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean in environment", "key", key, "value", v)
			return def
		}
		return b
	}
	return def
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		slog.Warn("invalid log level, using info", "value", s)
		return slog.LevelInfo
	}
	return level
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
