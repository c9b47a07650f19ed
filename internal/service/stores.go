package service

import (
	"context"

	"github.com/clausea/clausea/internal/legifrance"
	"github.com/clausea/clausea/internal/model"
	"github.com/clausea/clausea/internal/repo"
)

// Collaborator interfaces over the stores. The repo types satisfy them;
// tests substitute in-memory fakes.

type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []*model.Chunk) error
	DeleteBySource(ctx context.Context, tenantID, sourceID string) error
	CountBySource(ctx context.Context, tenantID, sourceID string) (int, error)
	LexicalSearch(ctx context.Context, tenantID string, sourceIDs []string, query string, limit int) ([]model.Chunk, error)
	SimilaritySearch(ctx context.Context, tenantID string, embedding []float32, topK int) ([]repo.ScoredChunk, error)
	ExactPhraseSearch(ctx context.Context, tenantID, sourceID, phrase string, limit int) ([]model.Chunk, error)
	ListMissingEmbedding(ctx context.Context, sourceID string, limit int) ([]model.Chunk, error)
	UpdateEmbeddings(ctx context.Context, ids []string, embeddings [][]float32) error
}

type SourceStore interface {
	Create(ctx context.Context, src *model.Source) error
	Get(ctx context.Context, tenantID, id string) (*model.Source, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Source, error)
	GetTitles(ctx context.Context, ids []string) (map[string]string, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status model.SourceStatus, mtime int64) error
	Delete(ctx context.Context, tenantID, id string) error
	ListStuckProcessing(ctx context.Context, cutoff int64, limit int) ([]model.Source, error)
}

type QueryStore interface {
	InsertQuery(ctx context.Context, q *model.Query) error
	InsertCitations(ctx context.Context, citations []*model.Citation) error
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.Query, error)
	ListCitations(ctx context.Context, tenantID, queryID string) ([]model.Citation, error)
}

type SettingsStore interface {
	Get(ctx context.Context, tenantID string) (*model.TenantSettings, error)
	Upsert(ctx context.Context, s *model.TenantSettings) error
}

// ExternalSearcher is the legal-search connector. One call per fond; the
// retrieval service fans out.
type ExternalSearcher interface {
	Search(ctx context.Context, query, fond string, page, pageSize int, sort string, filters []legifrance.Filter) ([]model.ExternalResult, error)
}
