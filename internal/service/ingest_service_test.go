package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clausea/clausea/internal/model"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
)

func TestCreateSourceChunksAndEmbeds(t *testing.T) {
	sources := &fakeSourceStore{titles: map[string]string{}}
	chunks := &fakeChunkStore{}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	// nil pool: embedding runs inline, so assertions see the final state.
	svc := NewIngestService(sources, chunks, providers, nil, 0)

	para := strings.Repeat("Le preneur s'engage à maintenir les lieux en bon état. ", 10)
	content := para + "\n\n" + para + "\n\n" + para

	src, err := svc.CreateSource(context.Background(), "tenant-1", SourceCreateInput{
		Title:   "Bail commercial",
		Type:    "text",
		Content: content,
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks.inserted)
	for i, c := range chunks.inserted {
		require.Equal(t, src.ID, c.SourceID)
		require.Equal(t, i, c.Position)
		require.Empty(t, c.Embedding)
		require.Positive(t, c.TokenCount)
	}
	require.Equal(t, model.SourceStatusReady, sources.statuses[src.ID])
}

func TestCreateSourceEmptyContentMarksEmpty(t *testing.T) {
	sources := &fakeSourceStore{}
	svc := NewIngestService(sources, &fakeChunkStore{}, &fakeProviders{}, nil, 0)

	src, err := svc.CreateSource(context.Background(), "tenant-1", SourceCreateInput{
		Title:   "Annexe vide",
		Type:    "text",
		Content: "\n\n \n",
	})
	require.NoError(t, err)
	require.Equal(t, model.SourceStatusEmpty, src.Status)
	require.Equal(t, model.SourceStatusEmpty, sources.statuses[src.ID])
}

func TestCreateSourceRejectsOversizedBody(t *testing.T) {
	sources := &fakeSourceStore{}
	svc := NewIngestService(sources, &fakeChunkStore{}, &fakeProviders{}, nil, 100)

	_, err := svc.CreateSource(context.Background(), "tenant-1", SourceCreateInput{
		Title:   "Trop long",
		Type:    "text",
		Content: strings.Repeat("a", 101),
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Empty(t, sources.created)
}

func TestEmbedSourceUpdatesMissingChunks(t *testing.T) {
	sources := &fakeSourceStore{}
	chunks := &fakeChunkStore{
		missing: []model.Chunk{
			{ID: "c-1", SourceID: "src-A", Content: "premier"},
			{ID: "c-2", SourceID: "src-A", Content: "second"},
		},
	}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewIngestService(sources, chunks, providers, nil, 0)

	require.NoError(t, svc.EmbedSource(context.Background(), "tenant-1", "src-A"))
	require.Equal(t, []string{"c-1", "c-2"}, chunks.updatedIDs)
	require.Equal(t, model.SourceStatusReady, sources.statuses["src-A"])
}

func TestEmbedSourceRejectsWrongDimension(t *testing.T) {
	sources := &fakeSourceStore{}
	chunks := &fakeChunkStore{
		missing: []model.Chunk{{ID: "c-1", SourceID: "src-A", Content: "texte"}},
	}
	providers := &fakeProviders{embedVec: unitVector(512)}
	svc := NewIngestService(sources, chunks, providers, nil, 0)

	err := svc.EmbedSource(context.Background(), "tenant-1", "src-A")
	require.Error(t, err)
	require.Empty(t, chunks.updatedIDs)
	require.NotEqual(t, model.SourceStatusReady, sources.statuses["src-A"])
}

func TestProcessStuckMarksChunklessSourcesEmpty(t *testing.T) {
	sources := &fakeSourceStore{
		stuck: []model.Source{
			{ID: "src-empty", TenantID: "tenant-1", Status: model.SourceStatusProcessing},
			{ID: "src-pending", TenantID: "tenant-1", Status: model.SourceStatusProcessing},
		},
	}
	chunks := &fakeChunkStore{
		countBySource: map[string]int{"src-pending": 3},
		missing: []model.Chunk{
			{ID: "c-1", SourceID: "src-pending", Content: "texte"},
		},
	}
	providers := &fakeProviders{embedVec: unitVector(1024)}
	svc := NewIngestService(sources, chunks, providers, nil, 0)

	require.NoError(t, svc.ProcessStuck(context.Background(), 0, 10))
	require.Equal(t, model.SourceStatusEmpty, sources.statuses["src-empty"])
	require.Equal(t, model.SourceStatusReady, sources.statuses["src-pending"])
	require.Equal(t, []string{"c-1"}, chunks.updatedIDs)
}
