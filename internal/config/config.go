package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Ledger backends selectable with LEDGER_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port               string
	CatalogURL         string
	CatalogTimeoutSecs int
	RefreshDelayMillis int
	LedgerBackend      string
	LedgerSQLitePath   string
	DBURL              string
	DBMaxConns         int
	DBMinConns         int
	DBMaxIdleSecs      int
	DBMaxLifeSecs      int
	DBConnTimeoutSecs  int
	DBStatementCache   int
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisPrefix        string
	ReadTimeoutSecs    int
	WriteTimeoutSecs   int
	IdleTimeoutSecs    int
	LogLevel           string
	LogDevelopment     bool
}

// Load reads configuration from environment variables, applying defaults and
// validation. A .env file in the working directory is read first; variables
// already set in the environment take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		CatalogURL:         os.Getenv("CATALOG_URL"),
		CatalogTimeoutSecs: getEnvInt("CATALOG_TIMEOUT_SECS", 5),
		RefreshDelayMillis: getEnvInt("REFRESH_DELAY_MS", 300),
		LedgerBackend:      strings.ToLower(getEnv("LEDGER_BACKEND", BackendSQLite)),
		LedgerSQLitePath:   getEnv("LEDGER_SQLITE_PATH", "feaster-ledger.db"),
		DBURL:              os.Getenv("DB_URL"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 4),
		DBMinConns:         getEnvInt("DB_MIN_CONNS", 1),
		DBMaxIdleSecs:      getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:      getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:  getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:   getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 64),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisPrefix:        getEnv("REDIS_PREFIX", "feaster:"),
		ReadTimeoutSecs:    getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:   getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:    getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogDevelopment:     getEnvBool("LOG_DEVELOPMENT", false),
	}

	if cfg.CatalogURL == "" {
		return Config{}, fmt.Errorf("CATALOG_URL is required")
	}
	if u, err := url.Parse(cfg.CatalogURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("CATALOG_URL must be an absolute URL")
	}
	if cfg.CatalogTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("CATALOG_TIMEOUT_SECS must be positive")
	}
	if cfg.RefreshDelayMillis < 0 {
		return Config{}, fmt.Errorf("REFRESH_DELAY_MS must be non-negative")
	}

	switch cfg.LedgerBackend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.LedgerSQLitePath == "" {
			return Config{}, fmt.Errorf("LEDGER_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if cfg.DBURL == "" {
			return Config{}, fmt.Errorf("DB_URL is required for the postgres backend")
		}
		if cfg.DBMaxConns <= 0 {
			return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
		}
		if cfg.DBMinConns < 0 {
			return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
		}
		if cfg.DBMinConns > cfg.DBMaxConns {
			return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
		}
		if cfg.DBStatementCache < 0 {
			return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
		if cfg.RedisDB < 0 {
			return Config{}, fmt.Errorf("REDIS_DB must be non-negative")
		}
	default:
		return Config{}, fmt.Errorf("LEDGER_BACKEND %q is not one of sqlite, memory, postgres, redis", cfg.LedgerBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
