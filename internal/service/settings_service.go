package service

import (
	"context"
	"strings"
	"time"

	"github.com/clausea/clausea/internal/model"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
)

var knownProviders = map[string]bool{
	"openai":  true,
	"mistral": true,
	"compat":  true,
	"gemini":  true,
	"cohere":  true,
}

type SettingsService struct {
	settings SettingsStore
}

func NewSettingsService(settings SettingsStore) *SettingsService {
	return &SettingsService{settings: settings}
}

func (s *SettingsService) Get(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	stored, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, storeError(err)
	}
	if stored == nil {
		return &model.TenantSettings{TenantID: tenantID}, nil
	}
	return stored, nil
}

type SettingsUpdateInput struct {
	Provider   string
	ChatModel  string
	EmbedModel string
	BaseURL    string
}

func (s *SettingsService) Update(ctx context.Context, tenantID string, in SettingsUpdateInput) (*model.TenantSettings, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider != "" && !knownProviders[provider] {
		return nil, appErr.ErrInvalid
	}
	settings := &model.TenantSettings{
		TenantID:   tenantID,
		Provider:   provider,
		ChatModel:  strings.TrimSpace(in.ChatModel),
		EmbedModel: strings.TrimSpace(in.EmbedModel),
		BaseURL:    strings.TrimSpace(in.BaseURL),
		Mtime:      time.Now().Unix(),
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, storeError(err)
	}
	return settings, nil
}
