// Package embedder generates the fixed-width page vectors used for semantic
// search. All providers emit 384-dimension float32 vectors; a disabled
// provider emits the all-zero vector so ingestion runs the same code path
// with or without an embedding service.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dimension is the fixed embedding width for every provider.
const Dimension = 384

// maxInputChars bounds the text sent to a provider per page.
const maxInputChars = 1000

// Common errors
var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrProviderFailed  = errors.New("embedding provider failed")
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Embedder generates semantic vectors for page text.
type Embedder interface {
	// Embed returns the vector for text. The input is truncated to
	// maxInputChars before encoding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector width, always 384.
	Dimension() int

	// Enabled reports whether real embeddings are produced. When false,
	// Embed returns the all-zero vector and semantic search is unavailable.
	Enabled() bool

	// Provider returns the provider name.
	Provider() string

	// Close releases any resources held by the embedder.
	Close() error
}

// ZeroVector returns the sentinel vector stored for pages embedded without a
// provider.
func ZeroVector() []float32 {
	return make([]float32, Dimension)
}

// IsZero reports whether v is absent or the all-zero sentinel.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// truncateInput bounds provider input length, backing off to the previous
// rune boundary so a multi-byte character is never split.
func truncateInput(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	cut := maxInputChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Cache provides in-memory LRU caching of vectors by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a vector cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector, so caller mutations cannot
// corrupt cached values.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector with automatic LRU eviction.
func (c *Cache) Set(hash string, v []float32) {
	c.cache.Add(hash, v)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// ComputeHash computes the SHA-256 cache key for text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
