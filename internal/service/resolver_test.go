package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/config"
	"github.com/clausea/clausea/internal/model"
)

func TestResolvePrecedence(t *testing.T) {
	cfg := config.AIConfig{
		Provider:   "openai",
		ChatModel:  "gpt-4o-mini",
		EmbedModel: "text-embedding-3-small",
		APIKey:     "server-key",
	}
	settings := &fakeSettingsStore{stored: &model.TenantSettings{
		TenantID:   "tenant-1",
		Provider:   "mistral",
		ChatModel:  "mistral-small-latest",
		EmbedModel: "mistral-embed",
	}}
	r := NewAIResolver(cfg, settings)
	ctx := context.Background()

	// Body beats header, stored and default.
	res, err := r.Resolve(ctx, "tenant-1",
		RequestAIOptions{Provider: "cohere", ChatModel: "command-r"},
		RequestAIOptions{Provider: "gemini"})
	require.NoError(t, err)
	require.Equal(t, "cohere", res.Provider)
	require.Equal(t, "command-r", res.ChatModel)

	// Header beats stored and default.
	res, err = r.Resolve(ctx, "tenant-1",
		RequestAIOptions{},
		RequestAIOptions{Provider: "gemini"})
	require.NoError(t, err)
	require.Equal(t, "gemini", res.Provider)

	// Stored beats default; unset fields fall through independently.
	res, err = r.Resolve(ctx, "tenant-1", RequestAIOptions{}, RequestAIOptions{})
	require.NoError(t, err)
	require.Equal(t, "mistral", res.Provider)
	require.Equal(t, "mistral-embed", res.EmbedModel)

	// Default when nothing else is set.
	r2 := NewAIResolver(cfg, &fakeSettingsStore{})
	res, err = r2.Resolve(ctx, "tenant-1", RequestAIOptions{}, RequestAIOptions{})
	require.NoError(t, err)
	require.Equal(t, "openai", res.Provider)
	require.Equal(t, "gpt-4o-mini", res.ChatModel)

	// API key always comes from the server config.
	require.Equal(t, "server-key", res.APIKey)
}

func TestResolveMissingProviderOrKeyFailsFast(t *testing.T) {
	r := NewAIResolver(config.AIConfig{APIKey: "k"}, &fakeSettingsStore{})
	_, err := r.Resolve(context.Background(), "tenant-1", RequestAIOptions{}, RequestAIOptions{})
	var provErr *ai.ProviderError
	require.True(t, errors.As(err, &provErr))
	require.Equal(t, ai.CategoryConfig, provErr.Category)

	r = NewAIResolver(config.AIConfig{Provider: "openai"}, &fakeSettingsStore{})
	_, err = r.Resolve(context.Background(), "tenant-1", RequestAIOptions{}, RequestAIOptions{})
	require.True(t, errors.As(err, &provErr))
	require.Equal(t, ai.CategoryConfig, provErr.Category)
}
