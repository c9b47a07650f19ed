package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clausea/clausea/internal/legifrance"
	"github.com/clausea/clausea/internal/model"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/repo"
)

func TestRetrieveExactArticleRanksFirstInBucket(t *testing.T) {
	chunks := &fakeChunkStore{
		lexical: []model.Chunk{
			{ID: "c-lex", SourceID: "src-A", Content: "La clause de non-concurrence est limitée."},
		},
		similar: []repo.ScoredChunk{
			{Chunk: model.Chunk{ID: "c-vec", SourceID: "src-A", Content: "Obligations du salarié."}, Score: 0.91},
		},
		exactBySource: map[string][]model.Chunk{
			"src-A": {{ID: "c-exact", SourceID: "src-A", Content: "Article 5 : la durée est de deux ans."}},
		},
	}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewRetrievalService(chunks, providers, nil)

	res, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question:  "Quelle est la durée de la clause de non-concurrence à l'article 5 ?",
		SourceIDs: []string{"src-A"},
		Scope:     ScopeInternal,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	first := res.Matches[0]
	require.Equal(t, "c-exact", first.ChunkID)
	require.Equal(t, model.OriginExact, first.Origin)
	require.InDelta(t, 5.0, first.Score, 1e-9)
	for _, m := range res.Matches[1:] {
		require.Less(t, m.Score, first.Score)
	}
}

func TestRetrieveGlobalDedupePrefersExact(t *testing.T) {
	shared := model.Chunk{ID: "c-1", SourceID: "src-A", Content: "Article 7 : préavis de trois mois."}
	chunks := &fakeChunkStore{
		lexical: []model.Chunk{shared},
		similar: []repo.ScoredChunk{{Chunk: shared, Score: 0.95}},
		exactBySource: map[string][]model.Chunk{
			"": {shared},
		},
	}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewRetrievalService(chunks, providers, nil)

	res, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question: "Que dit l'article 7 sur le préavis ?",
		Scope:    ScopeInternal,
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, model.OriginExact, res.Matches[0].Origin)
}

func TestRetrieveDimensionMismatchMakesNoStoreCall(t *testing.T) {
	chunks := &fakeChunkStore{}
	providers := &fakeProviders{embedVec: unitVector(1023)}
	svc := NewRetrievalService(chunks, providers, nil)

	_, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question: "Quelles sont les obligations du bailleur ?",
		Scope:    ScopeInternal,
	})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	require.Zero(t, chunks.similarityCalls)
	require.Zero(t, chunks.lexicalCalls)
	require.Empty(t, chunks.exactCalls)
}

func TestRetrieveVectorFiltersToRequestedSources(t *testing.T) {
	chunks := &fakeChunkStore{
		similar: []repo.ScoredChunk{
			{Chunk: model.Chunk{ID: "c-a", SourceID: "src-A", Content: "a"}, Score: 0.9},
			{Chunk: model.Chunk{ID: "c-b", SourceID: "src-B", Content: "b"}, Score: 0.8},
		},
	}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewRetrievalService(chunks, providers, nil)

	res, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question:  "Quelles garanties sont prévues ?",
		SourceIDs: []string{"src-A"},
		Scope:     ScopeInternal,
	})
	require.NoError(t, err)
	for _, m := range res.Matches {
		require.Equal(t, "src-A", m.SourceID)
	}
}

func TestMergeGlobalStableTiesAndCap(t *testing.T) {
	var lexical []model.Match
	for i := 0; i < 20; i++ {
		lexical = append(lexical, model.Match{
			ChunkID: fmt.Sprintf("c-%02d", i),
			Origin:  model.OriginLexical,
			Score:   1.0,
		})
	}
	merged := mergeGlobal(nil, lexical, nil)
	require.Len(t, merged, globalMatchCap)
	for i, m := range merged {
		require.Equal(t, fmt.Sprintf("c-%02d", i), m.ChunkID)
		require.InDelta(t, 2.2, m.Score, 1e-9)
	}
}

func TestMergePerSourceCapAndOrder(t *testing.T) {
	var lexical []model.Match
	for i := 0; i < 10; i++ {
		lexical = append(lexical, model.Match{
			ChunkID:  fmt.Sprintf("b-%d", i),
			SourceID: "src-B",
			Origin:   model.OriginLexical,
			Score:    1.0,
		})
	}
	exact := []model.Match{
		{ChunkID: "a-0", SourceID: "src-A", Origin: model.OriginExact, Score: 2.5},
	}
	merged := mergePerSource([]string{"src-B", "src-A"}, exact, lexical, nil)
	require.Len(t, merged, perSourceMatchCap+1)
	for _, m := range merged[:perSourceMatchCap] {
		require.Equal(t, "src-B", m.SourceID)
	}
	require.Equal(t, "a-0", merged[perSourceMatchCap].ChunkID)
}

func TestMergeIdempotentUnderDuplicateInput(t *testing.T) {
	dup := model.Match{ChunkID: "c-1", SourceID: "src-A", Content: "x"}
	lex := dup
	lex.Origin = model.OriginLexical
	lex.Score = 1.0
	vec := dup
	vec.Origin = model.OriginVector
	vec.Score = 0.9

	merged := mergeGlobal(nil, []model.Match{lex}, []model.Match{vec})
	require.Len(t, merged, 1)
	require.Equal(t, model.OriginLexical, merged[0].Origin)

	perSource := mergePerSource([]string{"src-A"}, nil, []model.Match{lex}, []model.Match{vec})
	require.Len(t, perSource, 1)
	require.Equal(t, model.OriginLexical, perSource[0].Origin)
}

func TestRetrieveExternalFanOutFailFast(t *testing.T) {
	external := &fakeExternal{
		results: map[string][]model.ExternalResult{
			"LODA": {{ID: "l-1", Title: "Loi n° 78-17", Fond: "LODA"}},
		},
		failOn: "JURI",
	}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewRetrievalService(&fakeChunkStore{}, providers, external)

	_, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question: "Quelles sont les sanctions prévues ?",
		Scope:    ScopeExternal,
		Fonds:    []string{"LODA", "JURI"},
	})
	var apiErr *legifrance.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 503, apiErr.Status)
}

func TestRetrieveExternalCapsFonds(t *testing.T) {
	external := &fakeExternal{results: map[string][]model.ExternalResult{}}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewRetrievalService(&fakeChunkStore{}, providers, external)

	_, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question: "Question générale",
		Scope:    ScopeExternal,
		Fonds:    []string{"LODA", "JURI", "JORF", "CNIL", "KALI", "CIRC"},
	})
	require.NoError(t, err)
	require.Len(t, external.calls, maxFonds)
}

func TestRetrieveScopeInternalSkipsExternal(t *testing.T) {
	external := &fakeExternal{failOn: "LODA"}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewRetrievalService(&fakeChunkStore{}, providers, external)

	res, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question: "Quelles clauses sont abusives ?",
		Scope:    ScopeInternal,
		Fonds:    []string{"LODA"},
	})
	require.NoError(t, err)
	require.Empty(t, external.calls)
	require.Empty(t, res.External)
}

func TestRetrieveScopeExternalSkipsInternal(t *testing.T) {
	chunks := &fakeChunkStore{
		lexical: []model.Chunk{{ID: "c-1", SourceID: "src-A", Content: "x"}},
	}
	external := &fakeExternal{
		results: map[string][]model.ExternalResult{
			"LODA": {{ID: "l-1", Title: "Loi", Fond: "LODA"}},
		},
	}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewRetrievalService(chunks, providers, external)

	res, err := svc.Retrieve(context.Background(), "tenant-1", RetrieveInput{
		Question: "Que prévoit la loi ?",
		Scope:    ScopeExternal,
		Fonds:    []string{"LODA"},
	})
	require.NoError(t, err)
	require.Empty(t, res.Matches)
	require.Zero(t, chunks.lexicalCalls)
	require.Len(t, res.External, 1)
}
