package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nu11ified/sync-server/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server Server
	Store  Store
	Sync   Sync

	Discord   Discord
	GDrive    GDrive
	TeamSpeak TeamSpeak

	LogLevel observability.LogLevel
}

// Server holds HTTP server configuration
type Server struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Store holds identity/mapping store configuration. When BaseURL is set the
// remote HTTP store is used; otherwise the local sqlite store at DBPath,
// optionally seeded (and live-reloaded) from MappingFile.
type Store struct {
	BaseURL     string
	DBPath      string
	MappingFile string
}

// Sync holds reconciliation tuning knobs
type Sync struct {
	ActionTimeout time.Duration
	RetryBackoff  time.Duration
}

// Discord holds the chat-platform adapter configuration
type Discord struct {
	Enabled  bool
	BotToken string
	APIBase  string
	RoleTTL  time.Duration
}

// GDrive holds the file-storage adapter configuration
type GDrive struct {
	Enabled bool
	KeyFile string
	APIBase string
	ItemTTL time.Duration
}

// TeamSpeak holds the voice-server adapter configuration
type TeamSpeak struct {
	Enabled  bool
	Host     string
	Port     int
	ServerID int
	Login    string
	Password string
	GroupTTL time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Host:            getEnv("SYNC_HOST", "0.0.0.0"),
			Port:            getEnv("SYNC_PORT", "8080"),
			ReadTimeout:     getEnvDuration("SYNC_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SYNC_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SYNC_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SYNC_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Store: Store{
			BaseURL:     getEnv("SYNC_STORE_BASE_URL", ""),
			DBPath:      getEnv("SYNC_DB_PATH", "sync.db"),
			MappingFile: getEnv("SYNC_MAPPING_FILE", ""),
		},
		Sync: Sync{
			ActionTimeout: getEnvDuration("SYNC_ACTION_TIMEOUT", 5*time.Second),
			RetryBackoff:  getEnvDuration("SYNC_RETRY_BACKOFF", 500*time.Millisecond),
		},
		Discord: Discord{
			Enabled:  getEnvBool("SYNC_DISCORD_ENABLED", true),
			BotToken: getEnv("SYNC_DISCORD_BOT_TOKEN", ""),
			APIBase:  getEnv("SYNC_DISCORD_API_BASE", ""),
			RoleTTL:  getEnvDuration("SYNC_DISCORD_ROLE_TTL", 5*time.Minute),
		},
		GDrive: GDrive{
			Enabled: getEnvBool("SYNC_GDRIVE_ENABLED", true),
			KeyFile: getEnv("SYNC_GDRIVE_KEY_FILE", ""),
			APIBase: getEnv("SYNC_GDRIVE_API_BASE", ""),
			ItemTTL: getEnvDuration("SYNC_GDRIVE_ITEM_TTL", 10*time.Minute),
		},
		TeamSpeak: TeamSpeak{
			Enabled:  getEnvBool("SYNC_TS_ENABLED", true),
			Host:     getEnv("SYNC_TS_HOST", ""),
			Port:     getEnvInt("SYNC_TS_PORT", 10011),
			ServerID: getEnvInt("SYNC_TS_SERVER_ID", 1),
			Login:    getEnv("SYNC_TS_LOGIN", ""),
			Password: getEnv("SYNC_TS_PASSWORD", ""),
			GroupTTL: getEnvDuration("SYNC_TS_GROUP_TTL", 5*time.Minute),
		},
		LogLevel: observability.ParseLogLevel(getEnv("SYNC_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Store.BaseURL == "" && c.Store.DBPath == "" {
		return fmt.Errorf("either a store base URL or a database path is required")
	}
	if c.Sync.ActionTimeout <= 0 {
		return fmt.Errorf("action timeout must be positive")
	}
	if c.TeamSpeak.Port <= 0 || c.TeamSpeak.Port > 65535 {
		return fmt.Errorf("invalid teamspeak query port: %d", c.TeamSpeak.Port)
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
