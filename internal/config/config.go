package config

import (
	"os"
	"strconv"
	"time"

	"consdocs/internal/ai"
)

// AIConfig holds settings for the chat-completion service used for page
// summaries and tags. An empty APIKey disables the service and switches the
// pipeline to preview summaries and heuristic tags.
type AIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	TimeoutSec int
}

// ClientConfig converts the env-derived settings into an ai.Config.
func (c AIConfig) ClientConfig() ai.Config {
	return ai.Config{
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
		Model:   c.Model,
		Timeout: time.Duration(c.TimeoutSec) * time.Second,
	}
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port   string
	DBPath string
	AI     AIConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
// Embedding provider settings are read separately by embedder.NewFromEnv.
func Load() *AppConfig {
	return &AppConfig{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "consdocs.db"),
		AI: AIConfig{
			APIKey:     getEnv("PERPLEXITY_API_KEY", ""),
			BaseURL:    getEnv("PERPLEXITY_BASE_URL", ai.DefaultBaseURL),
			Model:      getEnv("PERPLEXITY_MODEL", ai.DefaultModel),
			TimeoutSec: getEnvInt("AI_TIMEOUT_SEC", 30),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
