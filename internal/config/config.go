package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by OVERLAY_NEWS_PROVIDER.
const (
	ProviderNewsAPI = "newsapi"
	ProviderRSS     = "rss"
)

// Config captures runtime configuration for the overlay service.
type Config struct {
	ListenAddr      string
	NewsProvider    string
	NewsAPIKey      string
	NewsAPIBaseURL  string
	NewsAPICountry  string
	ProviderTimeout time.Duration
	ProviderRPS     float64
	ProviderBurst   int
	CacheTTL        time.Duration
	CacheSize       int
	RedisURL        string
	HeadlinesDB     string
	PresetsFile     string
	LLMAPIKey       string
	LLMModel        string
	LLMBaseURL      string
	LogLevel        string
}

// FromEnv creates a configuration instance sourced from environment variables.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:      getEnv("OVERLAY_LISTEN_ADDR", ":8080"),
		NewsProvider:    strings.ToLower(getEnv("OVERLAY_NEWS_PROVIDER", ProviderNewsAPI)),
		NewsAPIKey:      getEnv("NEWS_API_KEY", ""),
		NewsAPIBaseURL:  getEnv("OVERLAY_NEWSAPI_BASE_URL", ""),
		NewsAPICountry:  getEnv("OVERLAY_NEWSAPI_COUNTRY", "us"),
		ProviderTimeout: 8 * time.Second,
		ProviderRPS:     2,
		ProviderBurst:   4,
		CacheTTL:        10 * time.Second,
		CacheSize:       128,
		RedisURL:        getEnv("OVERLAY_REDIS_URL", ""),
		HeadlinesDB:     getEnv("OVERLAY_HEADLINES_DB", ""),
		PresetsFile:     getEnv("OVERLAY_PRESETS_FILE", ""),
		LLMAPIKey:       getEnv("OVERLAY_LLM_API_KEY", ""),
		LLMModel:        getEnv("OVERLAY_LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL:      getEnv("OVERLAY_LLM_BASE_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.NewsProvider {
	case ProviderNewsAPI, ProviderRSS:
	default:
		return Config{}, fmt.Errorf("parse OVERLAY_NEWS_PROVIDER: unknown provider %q", cfg.NewsProvider)
	}

	if err := parseDuration("OVERLAY_PROVIDER_TIMEOUT", &cfg.ProviderTimeout); err != nil {
		return Config{}, err
	}
	if err := parseDuration("OVERLAY_CACHE_TTL", &cfg.CacheTTL); err != nil {
		return Config{}, err
	}

	if rps := os.Getenv("OVERLAY_PROVIDER_RPS"); rps != "" {
		if _, err := fmt.Sscanf(rps, "%f", &cfg.ProviderRPS); err != nil {
			return Config{}, fmt.Errorf("parse OVERLAY_PROVIDER_RPS: %w", err)
		}
	}

	if burst := os.Getenv("OVERLAY_PROVIDER_BURST"); burst != "" {
		if _, err := fmt.Sscanf(burst, "%d", &cfg.ProviderBurst); err != nil {
			return Config{}, fmt.Errorf("parse OVERLAY_PROVIDER_BURST: %w", err)
		}
	}

	if size := os.Getenv("OVERLAY_CACHE_SIZE"); size != "" {
		if _, err := fmt.Sscanf(size, "%d", &cfg.CacheSize); err != nil {
			return Config{}, fmt.Errorf("parse OVERLAY_CACHE_SIZE: %w", err)
		}
		if cfg.CacheSize <= 0 {
			return Config{}, fmt.Errorf("parse OVERLAY_CACHE_SIZE: must be positive, got %d", cfg.CacheSize)
		}
	}

	return cfg, nil
}

func parseDuration(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("parse %s: must be positive, got %s", key, raw)
	}
	*dst = d
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
