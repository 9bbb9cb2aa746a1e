package llmrouter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// GenerateRequest is a single-shot text generation call.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// GenerateResult is the model's raw text plus a rough usage estimate used to
// feed back into RouteHint.PromptTokensApprox for escalation decisions.
type GenerateResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client is the minimal capability every model backend exposes to the
// review pipeline: generate text, and embed text for RAG indexing/search.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	HealthCheck(ctx context.Context) error
}

// cacheKey identifies one physical client configuration by
// (provider, endpoint, model, api_key, timeout).
type cacheKey struct {
	provider string
	endpoint string
	model    string
	apiKey   string
	timeout  time.Duration
}

// Registry is a read-mostly cache of Client instances keyed by
// (provider, endpoint, model, api_key, timeout): readers take the shared
// lock, and only a cache miss takes the exclusive lock to build and insert
// one client.
type Registry struct {
	mu      sync.RWMutex
	clients map[cacheKey]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[cacheKey]Client)}
}

// ProfileConfig is the per-profile (fast/slow/embedding) configuration read
// from internal/config's AI section.
type ProfileConfig struct {
	Provider string        `mapstructure:"provider"` // "gemini" | "ollama"
	Endpoint string        `mapstructure:"endpoint"` // ollama base URL; empty for gemini
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// GetOrCreate returns the cached client for cfg, building and inserting one
// on miss.
func (r *Registry) GetOrCreate(cfg ProfileConfig) (Client, error) {
	key := cacheKey{provider: cfg.Provider, endpoint: cfg.Endpoint, model: cfg.Model, apiKey: cfg.APIKey, timeout: cfg.Timeout}

	r.mu.RLock()
	if c, ok := r.clients[key]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}

	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case "gemini":
		client, err = newGeminiClient(cfg)
	case "ollama":
		client = newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("llmrouter: unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	r.clients[key] = client
	return client, nil
}

// Profiles bundles the three named profiles the review pipeline routes
// across.
type Profiles struct {
	Fast      Client
	Slow      Client
	Embedding Client
}

// Resolve builds (or reuses, via registry) a Client for name, falling back
// to the fast profile's client when the named profile has no config.
func Resolve(registry *Registry, name Profile, configs map[Profile]ProfileConfig, fast Client) (Client, error) {
	cfg, ok := configs[name]
	if !ok {
		return fast, nil
	}
	return registry.GetOrCreate(cfg)
}
