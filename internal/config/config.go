// Package config loads application configuration from environment variables
// and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cubelab/maple-proxy/pkg/logging"
	"github.com/cubelab/maple-proxy/pkg/ratelimit"
	"github.com/cubelab/maple-proxy/pkg/schema"
	"github.com/cubelab/maple-proxy/pkg/store"
)

// DefaultFreshness applies to every kind without a FRESHNESS_<KIND> override.
const DefaultFreshness = time.Hour

// Config holds application configuration.
type Config struct {
	ListenAddr string
	LogLevel   logging.LogLevel
	LogPretty  bool

	UpstreamBaseURL string
	UpstreamAPIKey  string
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration

	Timezone string

	RateCapacity int
	RatePeriod   time.Duration

	// RedisAddr switches the rate limiter to a shared Redis bucket when set.
	RedisAddr     string
	RedisPassword string

	Freshness     time.Duration
	KindFreshness map[schema.Kind]time.Duration

	DB store.DBConfig
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
		LogLevel:   logging.LogLevel(getenv("LOG_LEVEL", "info")),
		LogPretty:  getenvBool("LOG_PRETTY", false),

		UpstreamBaseURL: getenv("NEXON_API_BASE_URL", "https://open.api.nexon.com"),
		UpstreamAPIKey:  strings.TrimSpace(getenv("NEXON_API_KEY", "")),
		ConnectTimeout:  getenvDuration("UPSTREAM_CONNECT_TIMEOUT", 5*time.Second),
		RequestTimeout:  getenvDuration("UPSTREAM_REQUEST_TIMEOUT", 10*time.Second),

		Timezone: getenv("SERVER_TIMEZONE", "Asia/Seoul"),

		RateCapacity: getenvInt("RATE_LIMIT_CAPACITY", ratelimit.DefaultCapacity),
		RatePeriod:   getenvDuration("RATE_LIMIT_PERIOD", ratelimit.DefaultPeriod),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Freshness:     getenvDuration("FRESHNESS_WINDOW", DefaultFreshness),
		KindFreshness: loadKindFreshness(),

		DB: store.DBConfig{
			Type:     getenv("DB_TYPE", "sqlite"),
			Path:     getenv("DB_PATH", "maple-proxy.db"),
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			Name:     getenv("DB_NAME", "maple_proxy"),
			User:     getenv("DB_USER", "postgres"),
			Password: getenv("DB_PASSWORD", ""),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
	}

	return cfg
}

// Validate reports configuration errors that prevent startup.
func (c Config) Validate() error {
	if c.UpstreamAPIKey == "" {
		return fmt.Errorf("NEXON_API_KEY is required")
	}
	if c.RateCapacity <= 0 {
		return fmt.Errorf("RATE_LIMIT_CAPACITY must be positive")
	}
	if c.RatePeriod <= 0 {
		return fmt.Errorf("RATE_LIMIT_PERIOD must be positive")
	}
	if c.Freshness <= 0 {
		return fmt.Errorf("FRESHNESS_WINDOW must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("SERVER_TIMEZONE: %w", err)
	}
	return nil
}

// loadKindFreshness reads FRESHNESS_<KIND> overrides, e.g. FRESHNESS_BASIC=30m.
func loadKindFreshness() map[schema.Kind]time.Duration {
	overrides := make(map[schema.Kind]time.Duration)
	for _, kind := range schema.Kinds {
		key := "FRESHNESS_" + strings.ToUpper(string(kind))
		if d := getenvDuration(key, 0); d > 0 {
			overrides[kind] = d
		}
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
