package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	AIProviderProxy  = "proxy"
	AIProviderGemini = "gemini"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel  string
	LogFormat string

	// Store
	StoreBackend   string
	StoreKeyPrefix string
	SQLitePath     string
	DatabaseURL    string
	RedisURL       string

	// Proxy upstream (never sent to the browser)
	AIEndpoint        string
	AIAPIKey          string
	ProxyMaxBodyBytes int64

	// Uploaded source material
	UploadMaxBytes int64

	// AI gateway
	AIProvider           string
	AIProxyURL           string
	GeminiAPIKey         string
	GeminiModel          string
	AIConcurrentReqs     int
	AITimeoutSeconds     int
	AIRateLimitPerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	env := getEnvOrDefault("ENV", "development")
	defaultFormat := "json"
	if env == "development" {
		defaultFormat = "pretty"
	}
	port := getEnvOrDefault("PORT", "8080")

	cfg := &Config{
		Port:                 port,
		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", defaultFormat),
		StoreBackend:         strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreSQLite)),
		StoreKeyPrefix:       getEnvOrDefault("STORE_KEY_PREFIX", ""),
		SQLitePath:           getEnvOrDefault("SQLITE_PATH", "./data/quizme.db"),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		AIEndpoint:           getEnvOrDefault("AI_ENDPOINT", ""),
		AIAPIKey:             getEnvOrDefault("AI_API_KEY", ""),
		ProxyMaxBodyBytes:    int64(getEnvAsIntOrDefault("PROXY_MAX_BODY_BYTES", 1<<20)),
		UploadMaxBytes:       int64(getEnvAsIntOrDefault("UPLOAD_MAX_BYTES", 10<<20)),
		AIProvider:           strings.ToLower(getEnvOrDefault("AI_PROVIDER", AIProviderProxy)),
		AIProxyURL:           getEnvOrDefault("AI_PROXY_URL", fmt.Sprintf("http://localhost:%s/api/proxy", port)),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		AIConcurrentReqs:     getEnvAsIntOrDefault("AI_CONCURRENT_REQUESTS", 5),
		AITimeoutSeconds:     getEnvAsIntOrDefault("AI_TIMEOUT_SECONDS", 60),
		AIRateLimitPerMinute: getEnvAsIntOrDefault("AI_RATE_LIMIT_PER_MIN", 30),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Validate checks the settings the selected backends depend on.
// Proxy credentials are optional here; the proxy reports them per request.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store backend %q", c.StoreBackend)
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for store backend %q", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AIProvider {
	case AIProviderProxy:
		if c.AIProxyURL == "" {
			return fmt.Errorf("AI_PROXY_URL is required for AI provider %q", c.AIProvider)
		}
	case AIProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for AI provider %q", c.AIProvider)
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}

	if c.AIConcurrentReqs < 1 {
		return fmt.Errorf("AI_CONCURRENT_REQUESTS must be at least 1")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
