package service

import (
	"context"
	"sync"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/legifrance"
	"github.com/clausea/clausea/internal/model"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/repo"
)

type fakeChunkStore struct {
	mu            sync.Mutex
	lexical       []model.Chunk
	similar       []repo.ScoredChunk
	exactBySource map[string][]model.Chunk

	lexicalCalls    int
	similarityCalls int
	exactCalls      []string
	inserted        []*model.Chunk
	missing         []model.Chunk
	updatedIDs      []string
	updatedVectors  [][]float32
	deletedSources  []string
	countBySource   map[string]int
}

func (f *fakeChunkStore) InsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeChunkStore) DeleteBySource(ctx context.Context, tenantID, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedSources = append(f.deletedSources, sourceID)
	return nil
}

func (f *fakeChunkStore) CountBySource(ctx context.Context, tenantID, sourceID string) (int, error) {
	return f.countBySource[sourceID], nil
}

func (f *fakeChunkStore) LexicalSearch(ctx context.Context, tenantID string, sourceIDs []string, query string, limit int) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lexicalCalls++
	return f.lexical, nil
}

func (f *fakeChunkStore) SimilaritySearch(ctx context.Context, tenantID string, embedding []float32, topK int) ([]repo.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.similarityCalls++
	return f.similar, nil
}

func (f *fakeChunkStore) ExactPhraseSearch(ctx context.Context, tenantID, sourceID, phrase string, limit int) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exactCalls = append(f.exactCalls, sourceID)
	return f.exactBySource[sourceID], nil
}

func (f *fakeChunkStore) ListMissingEmbedding(ctx context.Context, sourceID string, limit int) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.missing
	f.missing = nil
	return out, nil
}

func (f *fakeChunkStore) UpdateEmbeddings(ctx context.Context, ids []string, embeddings [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedIDs = append(f.updatedIDs, ids...)
	f.updatedVectors = append(f.updatedVectors, embeddings...)
	return nil
}

type fakeSourceStore struct {
	titles   map[string]string
	created  []*model.Source
	statuses map[string]model.SourceStatus
	stuck    []model.Source
}

func (f *fakeSourceStore) Create(ctx context.Context, src *model.Source) error {
	f.created = append(f.created, src)
	return nil
}

func (f *fakeSourceStore) Get(ctx context.Context, tenantID, id string) (*model.Source, error) {
	for _, src := range f.created {
		if src.ID == id {
			return src, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeSourceStore) ListByTenant(ctx context.Context, tenantID string) ([]model.Source, error) {
	out := make([]model.Source, 0, len(f.created))
	for _, src := range f.created {
		out = append(out, *src)
	}
	return out, nil
}

func (f *fakeSourceStore) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if t, ok := f.titles[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (f *fakeSourceStore) UpdateStatus(ctx context.Context, tenantID, id string, status model.SourceStatus, mtime int64) error {
	if f.statuses == nil {
		f.statuses = make(map[string]model.SourceStatus)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeSourceStore) Delete(ctx context.Context, tenantID, id string) error {
	return nil
}

func (f *fakeSourceStore) ListStuckProcessing(ctx context.Context, cutoff int64, limit int) ([]model.Source, error) {
	return f.stuck, nil
}

type fakeQueryStore struct {
	queries      []*model.Query
	citations    []*model.Citation
	citationsErr error
}

func (f *fakeQueryStore) InsertQuery(ctx context.Context, q *model.Query) error {
	f.queries = append(f.queries, q)
	return nil
}

func (f *fakeQueryStore) InsertCitations(ctx context.Context, citations []*model.Citation) error {
	if f.citationsErr != nil {
		return f.citationsErr
	}
	f.citations = append(f.citations, citations...)
	return nil
}

func (f *fakeQueryStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.Query, error) {
	out := make([]model.Query, 0, len(f.queries))
	for _, q := range f.queries {
		out = append(out, *q)
	}
	return out, nil
}

func (f *fakeQueryStore) ListCitations(ctx context.Context, tenantID, queryID string) ([]model.Citation, error) {
	var out []model.Citation
	for _, c := range f.citations {
		if c.QueryID == queryID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeSettingsStore struct {
	stored *model.TenantSettings
}

func (f *fakeSettingsStore) Get(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	return f.stored, nil
}

func (f *fakeSettingsStore) Upsert(ctx context.Context, s *model.TenantSettings) error {
	f.stored = s
	return nil
}

// fakeProviders implements AIProviderSource with a canned embedding vector
// and chat answer, recording the requests it sees.
type fakeProviders struct {
	resolved   ResolvedAI
	embedVec   []float32
	embedErr   error
	chatAnswer string
	chatErr    error

	mu         sync.Mutex
	embedCalls int
	chatCalls  int
	lastChat   ai.ChatRequest
}

func (f *fakeProviders) Resolve(ctx context.Context, tenantID string, body, header RequestAIOptions) (ResolvedAI, error) {
	return f.resolved, nil
}

func (f *fakeProviders) ChatProvider(res ResolvedAI) (ai.IChatProvider, error) {
	return &fakeChatProvider{parent: f}, nil
}

func (f *fakeProviders) EmbedProvider(res ResolvedAI) (ai.IEmbedProvider, error) {
	return &fakeEmbedProviderT{parent: f}, nil
}

type fakeChatProvider struct {
	parent *fakeProviders
}

func (p *fakeChatProvider) Name() string { return "fake" }

func (p *fakeChatProvider) Chat(ctx context.Context, req ai.ChatRequest) (string, error) {
	p.parent.mu.Lock()
	defer p.parent.mu.Unlock()
	p.parent.chatCalls++
	p.parent.lastChat = req
	if p.parent.chatErr != nil {
		return "", p.parent.chatErr
	}
	return p.parent.chatAnswer, nil
}

type fakeEmbedProviderT struct {
	parent *fakeProviders
}

func (p *fakeEmbedProviderT) Name() string { return "fake" }

func (p *fakeEmbedProviderT) Embed(ctx context.Context, model string, texts []string, inputType string) ([][]float32, error) {
	p.parent.mu.Lock()
	defer p.parent.mu.Unlock()
	p.parent.embedCalls++
	if p.parent.embedErr != nil {
		return nil, p.parent.embedErr
	}
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, p.parent.embedVec)
	}
	return out, nil
}

type fakeExternal struct {
	mu      sync.Mutex
	results map[string][]model.ExternalResult
	failOn  string
	calls   []string
}

func (f *fakeExternal) Search(ctx context.Context, query, fond string, page, pageSize int, sort string, filters []legifrance.Filter) ([]model.ExternalResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fond)
	f.mu.Unlock()
	if fond == f.failOn {
		return nil, &legifrance.APIError{Status: 503, UserMessage: "Le service Légifrance est momentanément indisponible."}
	}
	return f.results[fond], nil
}

func unitVector(dim int) []float32 {
	v := make([]float32, dim)
	v[0] = 1
	return v
}
