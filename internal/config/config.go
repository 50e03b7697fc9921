// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// PlaceholderAssistantID is the value ASSISTANT_ID falls back to when unset.
const PlaceholderAssistantID = "<assistant-id>"

// Config holds all application configuration.
type Config struct {
	Port                 string
	FrontendURL          string
	LogLevel             slog.Level
	DataDir              string
	SessionDBPath        string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	AllowedOrigins       []string
	Assistant            AssistantConfig
	RateLimit            RateLimitConfig
	ConversationLog      ConversationLogConfig
}

// AssistantConfig describes the remote assistant service.
type AssistantConfig struct {
	ID      string
	URL     string
	APIKey  string
	Version string
	Timeout time.Duration
}

// RateLimitConfig bounds chat turns per session token.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		FrontendURL:          getEnv("FRONTEND_URL", ""),
		LogLevel:             getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		DataDir:              getEnv("DATA_DIR", "./data"),
		SessionDBPath:        getEnv("SESSION_DB_PATH", "./data/sessions.db"),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		AllowedOrigins:       getEnvList("CORS_ALLOWED_ORIGINS"),
		Assistant: AssistantConfig{
			ID:      getEnv("ASSISTANT_ID", PlaceholderAssistantID),
			URL:     getEnv("ASSISTANT_URL", "https://gateway.watsonplatform.net/assistant/api"),
			APIKey:  getEnv("ASSISTANT_APIKEY", ""),
			Version: getEnv("ASSISTANT_VERSION", "2018-11-08"),
			Timeout: getEnvDuration("ASSISTANT_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("ASSIST_RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvDuration("ASSIST_RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR cannot be empty")
	}
	if c.SessionDBPath == "" {
		return fmt.Errorf("SESSION_DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.Assistant.URL == "" {
		return fmt.Errorf("ASSISTANT_URL cannot be empty")
	}
	if c.Assistant.Version == "" {
		return fmt.Errorf("ASSISTANT_VERSION cannot be empty")
	}
	if c.Assistant.Timeout <= 0 {
		return fmt.Errorf("ASSISTANT_TIMEOUT must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("ASSIST_RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("ASSIST_RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AssistantConfigured reports whether a real assistant ID was provided.
func (c *Config) AssistantConfigured() bool {
	return c.Assistant.ID != "" && c.Assistant.ID != PlaceholderAssistantID
}

// OriginHosts returns the host part of each allowed origin, the form
// WebSocket origin checks expect.
func (c *Config) OriginHosts() []string {
	var hosts []string
	for _, origin := range c.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			hosts = append(hosts, origin)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
