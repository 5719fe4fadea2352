// Package config loads application configuration from environment
// variables, with a .env file picked up when present.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP surfaces
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel string

	// Market data upstream
	MarketDataBaseURL string
	MarketDataTimeout time.Duration

	// Circuit breaker on the upstream
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	// Optional caches. Empty RedisAddr disables the quote cache,
	// empty SQLitePath disables the bar cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QuoteCacheTTL time.Duration
	SQLitePath    string
	BarCacheTTL   time.Duration

	// AI insight backend. Empty key disables the endpoint.
	GeminiAPIKey string
	GeminiModel  string

	// Streaming cadence
	LiveTick  time.Duration
	StepDelay time.Duration

	// Per-IP rate limiting. RateRPS <= 0 disables the limiter.
	RateRPS   float64
	RateBurst int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if it exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8000"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		MarketDataBaseURL: getEnv("MARKETDATA_BASE_URL", ""),
		MarketDataTimeout: getEnvDuration("MARKETDATA_TIMEOUT", 10*time.Second),

		BreakerMaxFailures:  getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerResetTimeout: getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QuoteCacheTTL: getEnvDuration("QUOTE_CACHE_TTL", 5*time.Second),
		SQLitePath:    getEnv("SQLITE_PATH", ""),
		BarCacheTTL:   getEnvDuration("BAR_CACHE_TTL", 15*time.Minute),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", ""),

		LiveTick:  getEnvDuration("LIVE_TICK", time.Second),
		StepDelay: getEnvDuration("STEP_DELAY", 0),

		RateRPS:   getEnvFloat("RATE_LIMIT_RPS", 0),
		RateBurst: getEnvInt("RATE_LIMIT_BURST", 0),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("10s", "15m") and, for
// compatibility with plain numeric env values, bare integers as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
	return fallback
}
