package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Chat     ChatConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Fanout is "local" (single instance) or "redis".
	Fanout string
}

type DatabaseConfig struct {
	URL string
	// Storage is "postgres" or "memory".
	Storage string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type ChatConfig struct {
	MessageRate      int
	MessageWindow    time.Duration
	MaxMessageLength int
	HistoryLimit     int
	// AllowedOrigins limits websocket handshakes. Empty allows any origin.
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level string
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	FanoutLocal = "local"
	FanoutRedis = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORAGE", StoragePostgres)
	v.SetDefault("FANOUT", FanoutLocal)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WS_MESSAGE_RATE", 30)
	v.SetDefault("WS_MESSAGE_WINDOW", "1m")
	v.SetDefault("MESSAGE_MAX_LEN", 2000)
	v.SetDefault("HISTORY_LIMIT", 200)
}

// Load reads the environment after loading the env files that exist into
// it. Variables already set win, so earlier files take precedence over
// later ones.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("PORT"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Fanout:          strings.ToLower(v.GetString("FANOUT")),
		},
		Database: DatabaseConfig{
			URL:     v.GetString("DATABASE_URL"),
			Storage: strings.ToLower(v.GetString("STORAGE")),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		Chat: ChatConfig{
			MessageRate:      v.GetInt("WS_MESSAGE_RATE"),
			MessageWindow:    v.GetDuration("WS_MESSAGE_WINDOW"),
			MaxMessageLength: v.GetInt("MESSAGE_MAX_LEN"),
			HistoryLimit:     v.GetInt("HISTORY_LIMIT"),
			AllowedOrigins:   splitList(v.GetString("WS_ALLOWED_ORIGINS")),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}

	switch c.Database.Storage {
	case StoragePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Database.Storage)
	}

	switch c.Server.Fanout {
	case FanoutLocal:
	case FanoutRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for redis fanout")
		}
	default:
		return fmt.Errorf("unknown FANOUT %q", c.Server.Fanout)
	}

	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("MESSAGE_MAX_LEN must be positive")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
