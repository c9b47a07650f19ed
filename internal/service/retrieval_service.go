package service

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/model"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/pkg/logutil"
)

// Scope selects which retrieval channels run for a question.
type Scope string

const (
	ScopeInternal Scope = "internal"
	ScopeExternal Scope = "external"
	ScopeAll      Scope = "all"
)

const (
	embeddingDim      = 1024
	vectorTopK        = 6
	lexicalTokenLimit = 8
	lexicalFetchLimit = 10
	exactFetchLimit   = 10
	globalMatchCap    = 16
	perSourceMatchCap = 6
	maxFonds          = 4
	externalPageSize  = 5
)

var articleRe = regexp.MustCompile(`(?i)\barticle\s+(\d+)`)

var originWeight = map[model.MatchOrigin]float64{
	model.OriginExact:   2.5,
	model.OriginLexical: 1.2,
	model.OriginVector:  0,
}

var fixedScore = map[model.MatchOrigin]float64{
	model.OriginExact:   2.5,
	model.OriginLexical: 1.0,
}

type RetrievalService struct {
	chunks   ChunkStore
	resolver AIProviderSource
	external ExternalSearcher
}

// NewRetrievalService wires the retrieval channels. external may be nil
// when the legal-search connector is disabled; external scopes then yield
// no results.
func NewRetrievalService(chunks ChunkStore, resolver AIProviderSource, external ExternalSearcher) *RetrievalService {
	return &RetrievalService{chunks: chunks, resolver: resolver, external: external}
}

type RetrieveInput struct {
	Question  string
	SourceIDs []string
	Scope     Scope
	Fonds     []string
	AI        ResolvedAI
}

type RetrieveResult struct {
	Matches  []model.Match
	External []model.ExternalResult
}

func (s *RetrievalService) Retrieve(ctx context.Context, tenantID string, in RetrieveInput) (*RetrieveResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("tenant_id", tenantID))
	out := &RetrieveResult{}

	if in.Scope != ScopeExternal {
		matches, err := s.retrieveInternal(ctx, tenantID, in)
		if err != nil {
			return nil, err
		}
		out.Matches = matches
	}
	if in.Scope != ScopeInternal && s.external != nil && len(in.Fonds) > 0 {
		results, err := s.retrieveExternal(ctx, in.Question, in.Fonds)
		if err != nil {
			logger.Error("external search failed", zap.Error(err))
			return nil, err
		}
		out.External = results
	}
	logger.Debug("retrieval done",
		zap.Int("matches", len(out.Matches)),
		zap.Int("external", len(out.External)))
	return out, nil
}

// retrieveInternal runs the three channels. The vector channel goes first:
// its dimensionality check must fail the request before any store query.
func (s *RetrievalService) retrieveInternal(ctx context.Context, tenantID string, in RetrieveInput) ([]model.Match, error) {
	vector, err := s.vectorChannel(ctx, tenantID, in.Question, in.SourceIDs, in.AI)
	if err != nil {
		return nil, err
	}
	exact, err := s.exactChannel(ctx, tenantID, in.Question, in.SourceIDs)
	if err != nil {
		return nil, err
	}
	lexical, err := s.lexicalChannel(ctx, tenantID, in.Question, in.SourceIDs)
	if err != nil {
		return nil, err
	}
	if len(in.SourceIDs) > 0 {
		return mergePerSource(in.SourceIDs, exact, lexical, vector), nil
	}
	return mergeGlobal(exact, lexical, vector), nil
}

// lexicalChannel runs full-text search over the first tokens of the
// question. Scores are fixed; ranking happens at merge time.
func (s *RetrievalService) lexicalChannel(ctx context.Context, tenantID, question string, sourceIDs []string) ([]model.Match, error) {
	tokens := strings.Fields(question)
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > lexicalTokenLimit {
		tokens = tokens[:lexicalTokenLimit]
	}
	chunks, err := s.chunks.LexicalSearch(ctx, tenantID, sourceIDs, strings.Join(tokens, " "), lexicalFetchLimit)
	if err != nil {
		return nil, storeError(err)
	}
	matches := make([]model.Match, 0, len(chunks))
	for _, c := range chunks {
		matches = append(matches, model.Match{
			ChunkID:  c.ID,
			SourceID: c.SourceID,
			Content:  c.Content,
			Origin:   model.OriginLexical,
			Score:    fixedScore[model.OriginLexical],
		})
	}
	return matches, nil
}

// vectorChannel embeds the question and runs similarity search at tenant
// scope, filtering to the requested sources afterwards. The embedding must
// match the index dimensionality before any store call is made.
func (s *RetrievalService) vectorChannel(ctx context.Context, tenantID, question string, sourceIDs []string, resolved ResolvedAI) ([]model.Match, error) {
	provider, err := s.resolver.EmbedProvider(resolved)
	if err != nil {
		return nil, err
	}
	vectors, err := provider.Embed(ctx, resolved.EmbedModel, []string{question}, ai.InputTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) != embeddingDim {
		return nil, appErr.ErrDimensionMismatch
	}
	scored, err := s.chunks.SimilaritySearch(ctx, tenantID, vectors[0], vectorTopK)
	if err != nil {
		return nil, storeError(err)
	}
	wanted := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		wanted[id] = true
	}
	matches := make([]model.Match, 0, len(scored))
	for _, sc := range scored {
		if len(sourceIDs) > 0 && !wanted[sc.Chunk.SourceID] {
			continue
		}
		matches = append(matches, model.Match{
			ChunkID:  sc.Chunk.ID,
			SourceID: sc.Chunk.SourceID,
			Content:  sc.Chunk.Content,
			Origin:   model.OriginVector,
			Score:    sc.Score,
		})
	}
	return matches, nil
}

// exactChannel searches for the literal "article N" phrase when the
// question contains one. With a source filter every source is queried in
// parallel; any failure aborts.
func (s *RetrievalService) exactChannel(ctx context.Context, tenantID, question string, sourceIDs []string) ([]model.Match, error) {
	m := articleRe.FindStringSubmatch(question)
	if m == nil {
		return nil, nil
	}
	phrase := "article " + m[1]

	var chunkSets [][]model.Chunk
	if len(sourceIDs) == 0 {
		chunks, err := s.chunks.ExactPhraseSearch(ctx, tenantID, "", phrase, exactFetchLimit)
		if err != nil {
			return nil, storeError(err)
		}
		chunkSets = [][]model.Chunk{chunks}
	} else {
		chunkSets = make([][]model.Chunk, len(sourceIDs))
		g, gctx := errgroup.WithContext(ctx)
		for i, sourceID := range sourceIDs {
			i, sourceID := i, sourceID
			g.Go(func() error {
				chunks, err := s.chunks.ExactPhraseSearch(gctx, tenantID, sourceID, phrase, exactFetchLimit)
				if err != nil {
					return storeError(err)
				}
				chunkSets[i] = chunks
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var matches []model.Match
	for _, chunks := range chunkSets {
		for _, c := range chunks {
			matches = append(matches, model.Match{
				ChunkID:  c.ID,
				SourceID: c.SourceID,
				Content:  c.Content,
				Origin:   model.OriginExact,
				Score:    fixedScore[model.OriginExact],
			})
		}
	}
	return matches, nil
}

// retrieveExternal queries up to maxFonds fonds in parallel. A failure in
// any fond aborts the whole question with the connector's typed error.
func (s *RetrievalService) retrieveExternal(ctx context.Context, question string, fonds []string) ([]model.ExternalResult, error) {
	if len(fonds) > maxFonds {
		fonds = fonds[:maxFonds]
	}
	resultSets := make([][]model.ExternalResult, len(fonds))
	g, gctx := errgroup.WithContext(ctx)
	for i, fond := range fonds {
		i, fond := i, fond
		g.Go(func() error {
			results, err := s.external.Search(gctx, question, fond, 1, externalPageSize, "", nil)
			if err != nil {
				return err
			}
			resultSets[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []model.ExternalResult
	for _, set := range resultSets {
		out = append(out, set...)
	}
	return out, nil
}

// mergePerSource builds one bucket per requested source, in the caller's
// order. Within a bucket exact matches enter first, then lexical, then
// vector, deduplicated by chunk id; each bucket is rescored, stable-sorted
// and capped. There is no global truncation in this mode.
func mergePerSource(sourceIDs []string, exact, lexical, vector []model.Match) []model.Match {
	var out []model.Match
	for _, sourceID := range sourceIDs {
		seen := make(map[string]bool)
		var bucket []model.Match
		for _, set := range [][]model.Match{exact, lexical, vector} {
			for _, m := range set {
				if m.SourceID != sourceID || seen[m.ChunkID] {
					continue
				}
				seen[m.ChunkID] = true
				m.Score += originWeight[m.Origin]
				bucket = append(bucket, m)
			}
		}
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Score > bucket[j].Score
		})
		if len(bucket) > perSourceMatchCap {
			bucket = bucket[:perSourceMatchCap]
		}
		out = append(out, bucket...)
	}
	return out
}

// mergeGlobal deduplicates across all channels by chunk id. Exact matches
// win conflicts; vector matches only enter when the id is absent. The
// merged set is rescored, stable-sorted descending and capped.
func mergeGlobal(exact, lexical, vector []model.Match) []model.Match {
	seen := make(map[string]bool)
	var merged []model.Match
	for _, set := range [][]model.Match{exact, lexical, vector} {
		for _, m := range set {
			if seen[m.ChunkID] {
				continue
			}
			seen[m.ChunkID] = true
			m.Score += originWeight[m.Origin]
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > globalMatchCap {
		merged = merged[:globalMatchCap]
	}
	return merged
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	return appErr.Wrap(appErr.ErrStore, err)
}
