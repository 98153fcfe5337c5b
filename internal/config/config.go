package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

var (
	ErrMissingToken       = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrMissingCredentials = errors.New("META_APP_ID and META_APP_SECRET are required in production mode")
)

type Config struct {
	Telegram  TelegramConfig
	Meta      MetaConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Cache     CacheConfig
	Retry     RetryConfig
	Metrics   MetricsConfig
	// ProductionMode включает живой Meta-провайдер; без него работаем
	// только на синтетическом.
	ProductionMode bool
	CallTimeout    time.Duration
}

type TelegramConfig struct {
	Token string
}

type MetaConfig struct {
	AppID             string
	AppSecret         string
	GraphBaseURL      string
	InstagramBaseURL  string
	BusinessAccountID string
	Timeout           time.Duration
}

type LogConfig struct {
	Level string
}

type RateLimitConfig struct {
	RequestsPerHour int
	Burst           int
	Enabled         bool
}

type BreakerConfig struct {
	FailureThreshold float64
	Window           time.Duration
	Cooldown         time.Duration
	MinCalls         int
}

type CacheConfig struct {
	MaxEntries     int
	HashtagTTL     time.Duration
	UserContentTTL time.Duration
	TrendingTTL    time.Duration
	HealthTTL      time.Duration
	TokenTTL       time.Duration
	StaleWindow    time.Duration
}

type RetryConfig struct {
	Attempts    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

type MetricsConfig struct {
	ListenAddr string
}

func Load() (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Meta: MetaConfig{
			AppID:             os.Getenv("META_APP_ID"),
			AppSecret:         os.Getenv("META_APP_SECRET"),
			GraphBaseURL:      getEnvOrDefault("META_GRAPH_BASE_URL", "https://graph.facebook.com/v19.0"),
			InstagramBaseURL:  getEnvOrDefault("META_INSTAGRAM_BASE_URL", "https://graph.instagram.com"),
			BusinessAccountID: os.Getenv("META_BUSINESS_ACCOUNT_ID"),
			Timeout:           time.Duration(getEnvIntOrDefault("META_TIMEOUT_SEC", 30)) * time.Second,
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerHour: getEnvIntOrDefault("RATE_LIMIT_PER_HOUR", 150),
			Burst:           getEnvIntOrDefault("RATE_LIMIT_BURST", 10),
			Enabled:         getEnvBoolOrDefault("RATE_LIMIT_ENABLED", true),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvFloatOrDefault("BREAKER_FAILURE_THRESHOLD", 0.5),
			Window:           time.Duration(getEnvIntOrDefault("BREAKER_WINDOW_SEC", 300)) * time.Second,
			Cooldown:         time.Duration(getEnvIntOrDefault("BREAKER_COOLDOWN_SEC", 300)) * time.Second,
			MinCalls:         getEnvIntOrDefault("BREAKER_MIN_CALLS", 10),
		},
		Cache: CacheConfig{
			MaxEntries:     getEnvIntOrDefault("CACHE_MAX_ENTRIES", 1000),
			HashtagTTL:     time.Duration(getEnvIntOrDefault("CACHE_HASHTAG_TTL_SEC", 3600)) * time.Second,
			UserContentTTL: time.Duration(getEnvIntOrDefault("CACHE_USER_CONTENT_TTL_SEC", 1800)) * time.Second,
			TrendingTTL:    time.Duration(getEnvIntOrDefault("CACHE_TRENDING_TTL_SEC", 900)) * time.Second,
			HealthTTL:      time.Duration(getEnvIntOrDefault("CACHE_HEALTH_TTL_SEC", 300)) * time.Second,
			TokenTTL:       time.Duration(getEnvIntOrDefault("CACHE_TOKEN_TTL_SEC", 3600)) * time.Second,
			StaleWindow:    time.Duration(getEnvIntOrDefault("CACHE_STALE_WINDOW_SEC", 3600)) * time.Second,
		},
		Retry: RetryConfig{
			Attempts:    getEnvIntOrDefault("RETRY_ATTEMPTS", 3),
			BaseBackoff: time.Duration(getEnvIntOrDefault("RETRY_BASE_BACKOFF_MS", 1000)) * time.Millisecond,
			MaxBackoff:  time.Duration(getEnvIntOrDefault("RETRY_MAX_BACKOFF_MS", 30000)) * time.Millisecond,
		},
		Metrics: MetricsConfig{
			ListenAddr: getEnvOrDefault("METRICS_LISTEN_ADDR", ":9090"),
		},
		ProductionMode: getEnvBoolOrDefault("PRODUCTION_MODE", false),
		CallTimeout:    time.Duration(getEnvIntOrDefault("CALL_TIMEOUT_SEC", 30)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.ProductionMode && (c.Meta.AppID == "" || c.Meta.AppSecret == "") {
		return ErrMissingCredentials
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
