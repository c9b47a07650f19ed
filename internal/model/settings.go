package model

// TenantSettings holds a tenant's stored AI preference, consulted when a
// request does not name a provider explicitly.
type TenantSettings struct {
	TenantID   string `json:"tenant_id"`
	Provider   string `json:"provider"`
	ChatModel  string `json:"chat_model"`
	EmbedModel string `json:"embed_model"`
	BaseURL    string `json:"base_url"`
	Mtime      int64  `json:"mtime"`
}
