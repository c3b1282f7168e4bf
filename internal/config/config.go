package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Backend BackendConfig
	HTTP    HTTPConfig
	Cache   CacheConfig
	Session SessionConfig
}

type BackendConfig struct {
	BaseURL       string
	AnonKey       string
	ReceiptBucket string
	Environment   string
}

type HTTPConfig struct {
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
}

type CacheConfig struct {
	TTL     time.Duration
	Enabled bool
}

type SessionConfig struct {
	FilePath string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Backend: BackendConfig{
			BaseURL:       getEnv("BYTEBANK_BACKEND_URL", "http://localhost:54321"),
			AnonKey:       getEnv("BYTEBANK_ANON_KEY", ""),
			ReceiptBucket: getEnv("BYTEBANK_RECEIPT_BUCKET", "byte-bank"),
			Environment:   getEnv("APP_ENV", "development"),
		},
		HTTP: HTTPConfig{
			Timeout:            getDurationEnv("BYTEBANK_HTTP_TIMEOUT", 15*time.Second),
			MaxRetries:         getIntEnv("BYTEBANK_HTTP_MAX_RETRIES", 3),
			RetryBackoff:       getDurationEnv("BYTEBANK_HTTP_RETRY_BACKOFF", 250*time.Millisecond),
			RateLimitPerSecond: getIntEnv("BYTEBANK_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getIntEnv("BYTEBANK_RATE_LIMIT_BURST", 20),
		},
		Cache: CacheConfig{
			TTL:     getDurationEnv("BYTEBANK_CACHE_TTL", 30*time.Second),
			Enabled: getBoolEnv("BYTEBANK_CACHE_ENABLED", true),
		},
		Session: SessionConfig{
			FilePath: getEnv("BYTEBANK_SESSION_FILE", defaultSessionPath()),
		},
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	if c.Backend.AnonKey == "" {
		return fmt.Errorf("backend anonymous API key is required")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Backend.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Backend.Environment == "production"
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bytebank-session.json"
	}
	return filepath.Join(home, ".bytebank", "session.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
