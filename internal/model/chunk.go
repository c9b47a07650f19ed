package model

// Chunk is an immutable slice of a source's normalized text, embedded and
// indexed for retrieval. Chunks are deleted only together with their source.
type Chunk struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	TenantID   string    `json:"tenant_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	TokenCount int       `json:"token_count"`
	Position   int       `json:"position"`
	Ctime      int64     `json:"ctime"`
}
