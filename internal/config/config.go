package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	AnalysisSchedule string // "daily" or "weekly"
	TimeZone         string

	// Communities analysed on every scheduled run
	WatchedCommunities []string
	PostSampleSize     int
	ReportPostLimit    int

	// Reddit credentials; without them the public JSON endpoints are used
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	// Narrative enrichment
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration
	LLMMaxRetries  int
	LLMBackoff     time.Duration

	// Report storage: "azure", "redis" or "local"
	StorageBackend   string
	StorageAccount   string
	StorageContainer string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ReportTTL        time.Duration
	LocalStorageDir  string

	// In-flight guard: "memory" or "redis"
	GuardBackend    string
	AnalysisLockTTL time.Duration

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Debug:            getBoolEnv("DEBUG", false),
		AnalysisSchedule: getEnv("ANALYSIS_SCHEDULE", "weekly"),
		TimeZone:         getEnv("TIMEZONE", "UTC"),

		WatchedCommunities: getSliceEnv("WATCHED_COMMUNITIES", nil),
		PostSampleSize:     getIntEnv("POST_SAMPLE_SIZE", 100),
		ReportPostLimit:    getIntEnv("REPORT_POST_LIMIT", 100),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "Subreddit-Analyzer/1.0"),

		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature: getFloatEnv("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:   getIntEnv("LLM_MAX_TOKENS", 2000),
		LLMTimeout:     getDurationEnv("LLM_TIMEOUT", 120*time.Second),
		LLMMaxRetries:  getIntEnv("LLM_MAX_RETRIES", 3),
		LLMBackoff:     getDurationEnv("LLM_BACKOFF", time.Second),

		StorageBackend:   getEnv("STORAGE_BACKEND", "local"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "reports"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getIntEnv("REDIS_DB", 0),
		ReportTTL:        getDurationEnv("REPORT_TTL", 0),
		LocalStorageDir:  getEnv("LOCAL_STORAGE_DIR", "./data"),

		GuardBackend:    getEnv("GUARD_BACKEND", "memory"),
		AnalysisLockTTL: getDurationEnv("ANALYSIS_LOCK_TTL", 10*time.Minute),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AnalysisSchedule != "daily" && c.AnalysisSchedule != "weekly" {
		return fmt.Errorf("ANALYSIS_SCHEDULE must be 'daily' or 'weekly'")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid IANA zone: %w", c.TimeZone, err)
	}

	if c.PostSampleSize <= 0 || c.PostSampleSize > 100 {
		return fmt.Errorf("POST_SAMPLE_SIZE must be between 1 and 100")
	}

	if c.ReportPostLimit < 0 {
		return fmt.Errorf("REPORT_POST_LIMIT must not be negative")
	}

	if c.LLMMaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must not be negative")
	}

	switch c.StorageBackend {
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_BACKEND is 'azure'")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORAGE_BACKEND is 'redis'")
		}
	case "local":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'azure', 'redis' or 'local'")
	}

	if c.GuardBackend != "memory" && c.GuardBackend != "redis" {
		return fmt.Errorf("GUARD_BACKEND must be 'memory' or 'redis'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Location returns the configured time zone; validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getSliceEnv splits a comma-separated value, trimming blanks
func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
