package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
// 1. EMBEDDING_PROVIDER (openai, disabled)
// 2. Check for API keys: EMBEDDING_API_KEY, OPENAI_API_KEY
// 3. Default to disabled when no key is found; this is never an error,
// pages ingested without a service carry the zero vector.
func NewFromEnv() (Embedder, error) {
	apiKey := os.Getenv("EMBEDDING_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return New(Config{
		Provider:  os.Getenv("EMBEDDING_PROVIDER"),
		BaseURL:   os.Getenv("EMBEDDING_BASE_URL"),
		APIKey:    apiKey,
		Model:     os.Getenv("EMBEDDING_MODEL"),
		CacheSize: 10000,
	})
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		if cfg.APIKey == "" {
			provider = ProviderDisabled
		} else {
			provider = ProviderOpenAI
		}
	}

	switch provider {
	case ProviderOpenAI:
		var cache *Cache
		if cfg.CacheSize > 0 {
			cache = NewCache(cfg.CacheSize)
		}
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cache)
	case ProviderDisabled:
		return NewDisabledProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
