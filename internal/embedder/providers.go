package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider configuration
const (
	ProviderOpenAI   = "openai"
	ProviderDisabled = "disabled"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// OpenAIProvider generates embeddings through an OpenAI-compatible
// embeddings endpoint, requesting Dimension-wide vectors.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an embedder backed by an OpenAI-compatible API.
func NewOpenAIProvider(baseURL, apiKey, model string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrProviderFailed)
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	input := truncateInput(text)

	hash := ComputeHash(input)
	if o.cache != nil {
		if v, ok := o.cache.Get(hash); ok {
			return v, nil
		}
	}

	config := DefaultRetryConfig()
	vector, err := retryWithBackoff(ctx, config, func() ([]float32, error) {
		return o.callAPI(ctx, input)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
	}

	if o.cache != nil {
		o.cache.Set(hash, vector)
	}
	return vector, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"input":      text,
		"model":      o.model,
		"dimensions": Dimension,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vector := apiResp.Data[0].Embedding
	if len(vector) != Dimension {
		return nil, fmt.Errorf("unexpected dimension %d, want %d", len(vector), Dimension)
	}
	return vector, nil
}

func (o *OpenAIProvider) Dimension() int {
	return Dimension
}

func (o *OpenAIProvider) Enabled() bool {
	return true
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// DisabledProvider is the no-service embedder. Every page still gets a
// vector, but it is the all-zero sentinel and semantic search stays off.
type DisabledProvider struct{}

// NewDisabledProvider creates the no-op embedder.
func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{}
}

func (d *DisabledProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return ZeroVector(), nil
}

func (d *DisabledProvider) Dimension() int {
	return Dimension
}

func (d *DisabledProvider) Enabled() bool {
	return false
}

func (d *DisabledProvider) Provider() string {
	return ProviderDisabled
}

func (d *DisabledProvider) Close() error {
	return nil
}
