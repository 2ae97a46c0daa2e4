package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/kitbuilder587/webagent/internal/domain"
)

var (
	ErrMissingSearchKey = errors.New("SERPER_API_KEY is required")
	ErrMissingLLMKey    = errors.New("OPENROUTER_API_KEY is required for provider openrouter")
	ErrInvalidProvider  = errors.New("invalid LLM provider")
)

type Config struct {
	Serper    SerperConfig
	LLM       LLMConfig
	Extract   ExtractConfig
	RateLimit RateLimitConfig
	Search    SearchConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Log       LogConfig
}

type SerperConfig struct {
	APIKey         string
	FallbackAPIKey string
	BaseURL        string
	Timeout        time.Duration
	Location       string
	GL             string
	HL             string
}

type LLMConfig struct {
	Provider   string
	OpenRouter OpenRouterConfig
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type ExtractConfig struct {
	Timeout          time.Duration
	Concurrency      int
	FetchesPerSecond float64
}

type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

type SearchConfig struct {
	DefaultKind        domain.SearchKind
	DefaultResultCount int
	Timeout            time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type DatabaseConfig struct {
	// URL is optional: empty means usage analytics are not persisted.
	URL string
}

type LogConfig struct {
	Level string
	// Format is "console" (default) or "json".
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Serper: SerperConfig{
			APIKey:         os.Getenv("SERPER_API_KEY"),
			FallbackAPIKey: os.Getenv("SERPER_API_KEY_FALLBACK"),
			BaseURL:        getEnvOrDefault("SERPER_BASE_URL", "https://google.serper.dev"),
			Timeout:        time.Duration(getEnvIntOrDefault("SERPER_TIMEOUT_SEC", 15)) * time.Second,
			Location:       getEnvOrDefault("SERPER_LOCATION", "France"),
			GL:             getEnvOrDefault("SERPER_GL", "fr"),
			HL:             getEnvOrDefault("SERPER_HL", "fr"),
		},
		LLM: LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "openrouter"),
			OpenRouter: OpenRouterConfig{
				APIKey:  os.Getenv("OPENROUTER_API_KEY"),
				Model:   getEnvOrDefault("OPENROUTER_MODEL", "deepseek/deepseek-chat"),
				BaseURL: getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				Timeout: time.Duration(getEnvIntOrDefault("OPENROUTER_TIMEOUT_SEC", 60)) * time.Second,
			},
		},
		Extract: ExtractConfig{
			Timeout:          time.Duration(getEnvIntOrDefault("EXTRACT_TIMEOUT_SEC", 8)) * time.Second,
			Concurrency:      getEnvIntOrDefault("EXTRACT_CONCURRENCY", 5),
			FetchesPerSecond: float64(getEnvIntOrDefault("EXTRACT_FETCHES_PER_SEC", 10)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvIntOrDefault("RATE_LIMIT_PER_HOUR", 360),
			Window:            time.Hour,
		},
		Search: SearchConfig{
			DefaultKind:        domain.SearchKind(getEnvOrDefault("SEARCH_KIND", "general")),
			DefaultResultCount: getEnvIntOrDefault("SEARCH_RESULT_COUNT", domain.DefaultResultCount),
			Timeout:            time.Duration(getEnvIntOrDefault("SEARCH_TIMEOUT_SEC", 30)) * time.Second,
		},
		Cache: CacheConfig{
			TTL: time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 3600)) * time.Second,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Serper.APIKey == "" {
		return ErrMissingSearchKey
	}
	switch c.LLM.Provider {
	case "openrouter":
		if c.LLM.OpenRouter.APIKey == "" {
			return ErrMissingLLMKey
		}
	case "mock":
		// allowed for local runs without a provider account
	default:
		return ErrInvalidProvider
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
