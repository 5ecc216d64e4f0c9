package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Message backends.
const (
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// MessageBackend selects where chat history lives: "sql" or "redis".
	MessageBackend string

	// Cross-instance room fan-out. Empty NATSURL keeps broadcast local.
	NATSURL     string
	NATSSubject string

	JWTSecret   string
	CORSOrigins []string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations

	Chat ChatConfig
}

// ChatConfig tunes the session endpoint.
type ChatConfig struct {
	PersistFirst bool    // append before broadcast and ack the outcome
	StrictRooms  bool    // only room participants may join or read history
	SendRate     float64 // send_message events per second per connection; 0 disables
	SendBurst    int
	OutboxSize   int
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       os.Getenv("SQLITE_PATH"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MessageBackend:   strings.ToLower(getEnv("MESSAGE_BACKEND", BackendSQL)),
		NATSURL:          os.Getenv("NATS_URL"),
		NATSSubject:      getEnv("NATS_SUBJECT", "agrolink.chat.rooms"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		AutoBlockEnabled: getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
		Chat: ChatConfig{
			PersistFirst: getEnv("CHAT_PERSIST_FIRST", "false") == "true",
			StrictRooms:  getEnv("CHAT_STRICT_ROOMS", "false") == "true",
			SendRate:     getFloat("CHAT_SEND_RATE", 5),
			SendBurst:    getInt("CHAT_SEND_BURST", 10),
			OutboxSize:   getInt("CHAT_OUTBOX_SIZE", 64),
		},
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))

	if cfg.MessageBackend != BackendSQL && cfg.MessageBackend != BackendRedis {
		panic("MESSAGE_BACKEND must be \"sql\" or \"redis\"")
	}
	if cfg.MessageBackend == BackendRedis && cfg.RedisURL == "" {
		panic("REDIS_URL is required when MESSAGE_BACKEND=redis")
	}

	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			panic("JWT_SECRET is required in production")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-me"
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
