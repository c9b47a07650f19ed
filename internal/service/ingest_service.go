package service

import (
	"context"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/ingest"
	"github.com/clausea/clausea/internal/model"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/pkg/logutil"
)

const (
	chunkMaxChars     = 1800
	chunkOverlapChars = 200
	embedBatchCount   = 64
	embedBatchChars   = 30000
	missingBatchLimit = 256
)

type IngestService struct {
	sources       SourceStore
	chunks        ChunkStore
	resolver      AIProviderSource
	pool          *ants.Pool
	maxInputChars int
}

// NewIngestService wires ingestion. pool bounds concurrent embedding jobs;
// it may be nil, in which case embedding runs inline. maxInputChars bounds
// the accepted document body; zero or less disables the bound.
func NewIngestService(sources SourceStore, chunks ChunkStore, resolver AIProviderSource, pool *ants.Pool, maxInputChars int) *IngestService {
	return &IngestService{sources: sources, chunks: chunks, resolver: resolver, pool: pool, maxInputChars: maxInputChars}
}

type SourceCreateInput struct {
	Title   string
	Type    string
	Content string
}

// CreateSource normalizes and chunks the document, stores the chunks
// without embeddings, then embeds them on the worker pool. The source
// stays in processing until its chunks carry vectors; the backfill job
// picks up anything the pool failed to finish.
func (s *IngestService) CreateSource(ctx context.Context, tenantID string, in SourceCreateInput) (*model.Source, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("tenant_id", tenantID))
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, appErr.ErrInvalid
	}
	if s.maxInputChars > 0 && len(in.Content) > s.maxInputChars {
		logger.Warn("source body too large",
			zap.Int("size", len(in.Content)),
			zap.Int("limit", s.maxInputChars))
		return nil, appErr.ErrInvalid
	}

	now := time.Now().Unix()
	src := &model.Source{
		ID:       newID(),
		TenantID: tenantID,
		Title:    title,
		Type:     in.Type,
		Status:   model.SourceStatusProcessing,
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, storeError(err)
	}

	text := in.Content
	if in.Type == "markdown" {
		text = ingest.ExtractMarkdownText(text)
	}
	parts := ingest.Chunk(ingest.Normalize(text), chunkMaxChars, chunkOverlapChars)
	if len(parts) == 0 {
		if err := s.sources.UpdateStatus(ctx, tenantID, src.ID, model.SourceStatusEmpty, time.Now().Unix()); err != nil {
			return nil, storeError(err)
		}
		src.Status = model.SourceStatusEmpty
		return src, nil
	}

	chunks := make([]*model.Chunk, 0, len(parts))
	for i, content := range parts {
		chunks = append(chunks, &model.Chunk{
			ID:         newID(),
			SourceID:   src.ID,
			TenantID:   tenantID,
			Content:    content,
			TokenCount: ingest.EstimateTokens(content),
			Position:   i,
			Ctime:      now,
		})
	}
	if err := s.chunks.InsertChunks(ctx, chunks); err != nil {
		return nil, storeError(err)
	}
	logger.Info("source chunked",
		zap.String("source_id", src.ID),
		zap.Int("chunks", len(chunks)))

	s.scheduleEmbedding(ctx, src)
	return src, nil
}

func (s *IngestService) scheduleEmbedding(ctx context.Context, src *model.Source) {
	logger := logutil.GetLogger(ctx).With(zap.String("source_id", src.ID))
	run := func() {
		// Detached from the request lifetime on purpose.
		bg := logutil.WithLogger(context.Background(), logger)
		if err := s.EmbedSource(bg, src.TenantID, src.ID); err != nil {
			logger.Error("source embedding failed, left for backfill", zap.Error(err))
		}
	}
	if s.pool == nil {
		run()
		return
	}
	if err := s.pool.Submit(run); err != nil {
		logger.Error("embedding pool rejected job, running inline", zap.Error(err))
		run()
	}
}

// EmbedSource embeds every chunk of the source that still lacks a vector
// and marks the source ready. Idempotent; also used by the backfill job.
func (s *IngestService) EmbedSource(ctx context.Context, tenantID, sourceID string) error {
	resolved, err := s.resolver.Resolve(ctx, tenantID, RequestAIOptions{}, RequestAIOptions{})
	if err != nil {
		return err
	}
	provider, err := s.resolver.EmbedProvider(resolved)
	if err != nil {
		return err
	}

	for {
		chunks, err := s.chunks.ListMissingEmbedding(ctx, sourceID, missingBatchLimit)
		if err != nil {
			return storeError(err)
		}
		if len(chunks) == 0 {
			break
		}
		texts := make([]string, 0, len(chunks))
		ids := make([]string, 0, len(chunks))
		for _, c := range chunks {
			texts = append(texts, c.Content)
			ids = append(ids, c.ID)
		}
		vectors, err := ai.BatchEmbed(ctx, provider, resolved.EmbedModel, texts, ai.InputTypeDocument, embedBatchCount, embedBatchChars)
		if err != nil {
			return err
		}
		if len(vectors) != len(ids) {
			return appErr.ErrDimensionMismatch
		}
		for _, v := range vectors {
			if len(v) != embeddingDim {
				return appErr.ErrDimensionMismatch
			}
		}
		if err := s.chunks.UpdateEmbeddings(ctx, ids, vectors); err != nil {
			return storeError(err)
		}
	}
	return storeError(s.sources.UpdateStatus(ctx, tenantID, sourceID, model.SourceStatusReady, time.Now().Unix()))
}

// ProcessStuck finds sources left in processing beyond the given delay and
// re-runs their embedding. Sources that turned out to have no chunks are
// marked empty. Called by the scheduler.
func (s *IngestService) ProcessStuck(ctx context.Context, delay time.Duration, limit int) error {
	logger := logutil.GetLogger(ctx)
	cutoff := time.Now().Add(-delay).Unix()
	stuck, err := s.sources.ListStuckProcessing(ctx, cutoff, limit)
	if err != nil {
		return storeError(err)
	}
	for _, src := range stuck {
		count, err := s.chunks.CountBySource(ctx, src.TenantID, src.ID)
		if err != nil {
			return storeError(err)
		}
		if count == 0 {
			if err := s.sources.UpdateStatus(ctx, src.TenantID, src.ID, model.SourceStatusEmpty, time.Now().Unix()); err != nil {
				return storeError(err)
			}
			continue
		}
		if err := s.EmbedSource(ctx, src.TenantID, src.ID); err != nil {
			logger.Error("backfill embedding failed",
				zap.String("source_id", src.ID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *IngestService) ListSources(ctx context.Context, tenantID string) ([]model.Source, error) {
	sources, err := s.sources.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, storeError(err)
	}
	return sources, nil
}

func (s *IngestService) GetSource(ctx context.Context, tenantID, id string) (*model.Source, error) {
	return s.sources.Get(ctx, tenantID, id)
}

// DeleteSource removes the source and its chunks. Chunks go first so a
// half-finished delete never leaves orphans behind a live source.
func (s *IngestService) DeleteSource(ctx context.Context, tenantID, id string) error {
	if _, err := s.sources.Get(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.chunks.DeleteBySource(ctx, tenantID, id); err != nil {
		return storeError(err)
	}
	return storeError(s.sources.Delete(ctx, tenantID, id))
}
