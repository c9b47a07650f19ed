package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/config"
	"github.com/clausea/clausea/internal/embedcache"
)

// RequestAIOptions carries the per-request provider overrides, either from
// the request body or from the X-AI-* headers.
type RequestAIOptions struct {
	Provider   string
	ChatModel  string
	EmbedModel string
	BaseURL    string
}

// ResolvedAI is the provider configuration one request runs with.
type ResolvedAI struct {
	Provider   string
	ChatModel  string
	EmbedModel string
	APIKey     string
	BaseURL    string
}

// AIProviderSource resolves per-request provider settings and builds the
// vendor clients. AIResolver is the production implementation.
type AIProviderSource interface {
	Resolve(ctx context.Context, tenantID string, body, header RequestAIOptions) (ResolvedAI, error)
	ChatProvider(res ResolvedAI) (ai.IChatProvider, error)
	EmbedProvider(res ResolvedAI) (ai.IEmbedProvider, error)
}

// AIResolver resolves provider settings per request with a fixed
// precedence: request body field, then X-AI-* header, then the tenant's
// stored preference, then the server default. The API key always comes
// from the server config; clients never supply keys.
type AIResolver struct {
	cfg      config.AIConfig
	settings SettingsStore

	mu        sync.Mutex
	embedders map[string]ai.IEmbedProvider
}

func NewAIResolver(cfg config.AIConfig, settings SettingsStore) *AIResolver {
	return &AIResolver{
		cfg:       cfg,
		settings:  settings,
		embedders: make(map[string]ai.IEmbedProvider),
	}
}

func (r *AIResolver) Resolve(ctx context.Context, tenantID string, body, header RequestAIOptions) (ResolvedAI, error) {
	var stored RequestAIOptions
	if r.settings != nil {
		s, err := r.settings.Get(ctx, tenantID)
		if err != nil {
			return ResolvedAI{}, err
		}
		if s != nil {
			stored = RequestAIOptions{
				Provider:   s.Provider,
				ChatModel:  s.ChatModel,
				EmbedModel: s.EmbedModel,
				BaseURL:    s.BaseURL,
			}
		}
	}
	res := ResolvedAI{
		Provider:   pick(body.Provider, header.Provider, stored.Provider, r.cfg.Provider),
		ChatModel:  pick(body.ChatModel, header.ChatModel, stored.ChatModel, r.cfg.ChatModel),
		EmbedModel: pick(body.EmbedModel, header.EmbedModel, stored.EmbedModel, r.cfg.EmbedModel),
		BaseURL:    pick(body.BaseURL, header.BaseURL, stored.BaseURL, r.cfg.BaseURL),
		APIKey:     r.cfg.APIKey,
	}
	if res.Provider == "" {
		return ResolvedAI{}, ai.NewConfigError("ai provider is required")
	}
	if res.APIKey == "" {
		return ResolvedAI{}, ai.NewConfigError("ai api key is not configured")
	}
	return res, nil
}

func (r *AIResolver) ChatProvider(res ResolvedAI) (ai.IChatProvider, error) {
	return ai.NewChatProvider(res.Provider, r.providerArgs(res))
}

func (r *AIResolver) providerArgs(res ResolvedAI) map[string]interface{} {
	return map[string]interface{}{
		"api_key":         res.APIKey,
		"base_url":        res.BaseURL,
		"timeout_seconds": r.cfg.Timeout,
	}
}

// EmbedProvider memoizes providers per (provider, base URL) so the LRU
// embedding cache survives across requests.
func (r *AIResolver) EmbedProvider(res ResolvedAI) (ai.IEmbedProvider, error) {
	key := strings.ToLower(res.Provider) + "|" + res.BaseURL
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.embedders[key]; ok {
		return p, nil
	}
	p, err := ai.NewEmbedProvider(res.Provider, r.providerArgs(res))
	if err != nil {
		return nil, err
	}
	p = embedcache.WrapLRU(p, 4096, 2*time.Hour)
	r.embedders[key] = p
	return p, nil
}

func pick(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
