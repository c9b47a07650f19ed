package repo

import (
	"context"
	"database/sql"

	"github.com/clausea/clausea/internal/model"
)

type SettingsRepo struct {
	db *sql.DB
}

func NewSettingsRepo(db *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	const query = `
		SELECT tenant_id, provider, chat_model, embed_model, base_url, mtime
		FROM tenant_settings
		WHERE tenant_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, tenantID)
	var s model.TenantSettings
	if err := row.Scan(&s.TenantID, &s.Provider, &s.ChatModel, &s.EmbedModel, &s.BaseURL, &s.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, s *model.TenantSettings) error {
	const query = `
		INSERT INTO tenant_settings (tenant_id, provider, chat_model, embed_model, base_url, mtime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			chat_model = EXCLUDED.chat_model,
			embed_model = EXCLUDED.embed_model,
			base_url = EXCLUDED.base_url,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query, s.TenantID, s.Provider, s.ChatModel, s.EmbedModel, s.BaseURL, s.Mtime)
	return err
}
