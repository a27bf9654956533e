// File: internal/config/config.go
// Grid Match Server - Configuration Management

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the match server.
type Config struct {
	// Server settings
	ServerName    string
	ServerVersion string
	Port          int

	// Identity / sessions
	NodeEnv               string
	TGBotToken            string
	SessionTTLSeconds     int
	InternalKey           string
	DevAllowQueryTgUserID bool

	// Database settings
	DBType           string // "sqlite" or "postgres"
	DatabaseURL      string
	DBMaxConnections int
	DBMaxIdleConns   int

	// Redis settings
	RedisEnabled bool
	RedisURL     string

	// Diagnostics
	LogSnapshotBroadcast      bool
	LogSnapshotBroadcastEvery int

	// Shutdown behavior
	ShutdownTimeoutSecs int
}

var defaultConfig = Config{
	ServerName:                "Grid Match Server",
	ServerVersion:             "0.1.0",
	Port:                      3001,
	NodeEnv:                   "development",
	SessionTTLSeconds:         30 * 24 * 60 * 60,
	DBType:                    "sqlite",
	DatabaseURL:               "data/gridmatch.db",
	DBMaxConnections:          25,
	DBMaxIdleConns:            5,
	RedisEnabled:              false,
	RedisURL:                  "localhost:6379",
	LogSnapshotBroadcastEvery: 100,
	ShutdownTimeoutSecs:       30,
}

// Load reads configuration from the environment, falling back to a .env
// file (via godotenv) and finally to defaultConfig. Use envFile to point at
// a custom file, matching the teacher's flag-driven bootstrap.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		log.Printf("%s not found, relying on process environment and defaults", envFile)
	}

	cfg := defaultConfig

	cfg.NodeEnv = getString("NODE_ENV", cfg.NodeEnv)
	cfg.TGBotToken = getString("TG_BOT_TOKEN", cfg.TGBotToken)
	cfg.InternalKey = getString("INTERNAL_KEY", cfg.InternalKey)
	cfg.DatabaseURL = getString("DATABASE_URL", cfg.DatabaseURL)

	var err error
	if cfg.Port, err = getInt("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.SessionTTLSeconds, err = getInt("SESSION_TTL_SECONDS", cfg.SessionTTLSeconds); err != nil {
		return nil, err
	}
	if cfg.SessionTTLSeconds < 60 {
		cfg.SessionTTLSeconds = 60
	}

	cfg.DevAllowQueryTgUserID = getBool("RR_DEV_ALLOW_QUERY_TGUSERID", false)
	cfg.LogSnapshotBroadcast = getBool("RR_LOG_SNAPSHOT_BROADCAST", false)
	if cfg.LogSnapshotBroadcastEvery, err = getInt("RR_LOG_SNAPSHOT_BROADCAST_EVERY", cfg.LogSnapshotBroadcastEvery); err != nil {
		return nil, err
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		cfg.DBType = dbType
	} else if looksLikePostgres(cfg.DatabaseURL) {
		cfg.DBType = "postgres"
	}

	cfg.RedisEnabled = getBool("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.RedisURL = getString("REDIS_URL", cfg.RedisURL)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func looksLikePostgres(url string) bool {
	return len(url) >= 11 && (url[:11] == "postgres://")
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v == "true" || v == "1"
}

func validate(c *Config) error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: must be between 1 and 65535")
	}
	if c.DBType != "sqlite" && c.DBType != "postgres" {
		return fmt.Errorf("invalid DB_TYPE: must be 'sqlite' or 'postgres'")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}
	if c.IsProduction() && c.TGBotToken == "" {
		return fmt.Errorf("TG_BOT_TOKEN is required in production")
	}
	if c.ShutdownTimeoutSecs < 5 {
		return fmt.Errorf("shutdown timeout must be at least 5 seconds")
	}
	return nil
}

// IsProduction reports whether the server is running in production mode,
// which gates dev-only auth fallbacks per the spec's design notes.
func (c *Config) IsProduction() bool {
	return c.NodeEnv == "production"
}

// ListenAddress returns the host:port the HTTP server should bind.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LogConfig logs the active configuration without leaking secrets.
func (c *Config) LogConfig() {
	log.Println("=== Server Configuration ===")
	log.Printf("Server: %s v%s", c.ServerName, c.ServerVersion)
	log.Printf("Listen: %s", c.ListenAddress())
	log.Printf("Environment: %s", c.NodeEnv)
	log.Printf("Database Type: %s", c.DBType)
	log.Printf("Session TTL: %ds", c.SessionTTLSeconds)
	log.Printf("Redis Enabled: %v", c.RedisEnabled)
	log.Printf("Dev tgUserId fallback: %v", c.DevAllowQueryTgUserID)
	log.Println("=============================")
}
