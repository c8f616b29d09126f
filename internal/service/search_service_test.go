package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
	"docvector-go/pkg/vectorstore"
)

var testSearchCfg = config.SearchConfig{DefaultK: 5, MaxK: 100, SimilarCandidatesFactor: 4}

func match(docID string, idx int, score float64) model.Match {
	return model.Match{
		Record: model.Record{
			ID:       model.RecordID(docID, idx),
			Text:     docID + " text",
			Metadata: model.ChunkMetadata{DocID: docID, FileName: docID + ".txt", ChunkIndex: idx},
		},
		Score: score,
	}
}

func TestSearchUsesDefaultK(t *testing.T) {
	emb := new(mockEmbedder)
	store := new(mockStore)
	emb.On("CreateEmbedding", mock.Anything, "quick brown fox").Return([]float32{1, 0}, nil).Once()
	store.On("Query", mock.Anything, []float32{1, 0}, 5, vectorstore.Filter{Equals: map[string]string{"file_type": "txt"}}).
		Return([]model.Match{match("d1", 0, 0.9), match("d2", 3, 0.7)}, nil).Once()

	svc := NewSearchService(emb, store, testSearchCfg)
	results, err := svc.Search(context.Background(), "  quick brown fox ", 0, map[string]string{"file_type": "txt"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d1 text", results[0].Content)
	assert.Equal(t, "d1.txt", results[0].Metadata.FileName)
	assert.InDelta(t, 0.9, results[0].SimilarityScore, 1e-9)
	assert.Equal(t, 3, results[1].Metadata.ChunkIndex)
	emb.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestSearchValidation(t *testing.T) {
	emb := new(mockEmbedder)
	svc := NewSearchService(emb, new(mockStore), testSearchCfg)

	_, err := svc.Search(context.Background(), "   ", 5, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, "Query is required", model.Message(err))

	_, err = svc.Search(context.Background(), "q", 101, nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Search(context.Background(), "q", -1, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	emb.AssertNotCalled(t, "CreateEmbedding", mock.Anything, mock.Anything)
}

func TestSearchPropagatesEmbeddingError(t *testing.T) {
	emb := new(mockEmbedder)
	emb.On("CreateEmbedding", mock.Anything, "q").Return(nil, model.NewError(model.ErrEmbeddingAPI, "boom"))
	store := new(mockStore)

	_, err := NewSearchService(emb, store, testSearchCfg).Search(context.Background(), "q", 1, nil)
	assert.ErrorIs(t, err, model.ErrEmbeddingAPI)
	store.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSimilarCollapsesByDocument(t *testing.T) {
	emb := new(mockEmbedder)
	store := new(mockStore)
	store.On("Fetch", mock.Anything, "ref_0").Return(&model.Record{ID: "ref_0", Vector: []float32{0.5, 0.5}}, nil)
	store.On("Query", mock.Anything, []float32{0.5, 0.5}, 8, vectorstore.Filter{ExcludeDocID: "ref"}).
		Return([]model.Match{
			match("a", 1, 0.95),
			match("a", 0, 0.93),
			match("b", 0, 0.90),
			match("c", 2, 0.80),
		}, nil)

	results, err := NewSearchService(emb, store, testSearchCfg).Similar(context.Background(), "ref", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Metadata.DocID)
	assert.Equal(t, 1, results[0].Metadata.ChunkIndex)
	assert.Equal(t, "b", results[1].Metadata.DocID)
	emb.AssertNotCalled(t, "CreateEmbedding", mock.Anything, mock.Anything)
}

func TestSimilarWidensCandidatesWhenOneDocumentFillsWindow(t *testing.T) {
	store := new(mockStore)
	store.On("Fetch", mock.Anything, "ref_0").Return(&model.Record{ID: "ref_0", Vector: []float32{1, 0}}, nil)

	window := make([]model.Match, 0, 8)
	for i := 0; i < 8; i++ {
		window = append(window, match("big", i, 0.99-float64(i)*0.001))
	}
	store.On("Query", mock.Anything, []float32{1, 0}, 8, vectorstore.Filter{ExcludeDocID: "ref"}).
		Return(window, nil).Once()
	wider := append(append([]model.Match{}, window...), match("big", 8, 0.98), match("other", 0, 0.70))
	store.On("Query", mock.Anything, []float32{1, 0}, 16, vectorstore.Filter{ExcludeDocID: "ref"}).
		Return(wider, nil).Once()

	results, err := NewSearchService(new(mockEmbedder), store, testSearchCfg).Similar(context.Background(), "ref", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "big", results[0].Metadata.DocID)
	assert.Equal(t, "other", results[1].Metadata.DocID)
	store.AssertExpectations(t)
}

func TestSimilarStopsWhenStoreIsExhausted(t *testing.T) {
	store := new(mockStore)
	store.On("Fetch", mock.Anything, "ref_0").Return(&model.Record{ID: "ref_0", Vector: []float32{1, 0}}, nil)
	store.On("Query", mock.Anything, []float32{1, 0}, 8, vectorstore.Filter{ExcludeDocID: "ref"}).
		Return([]model.Match{match("a", 0, 0.9), match("a", 1, 0.8)}, nil).Once()

	results, err := NewSearchService(new(mockEmbedder), store, testSearchCfg).Similar(context.Background(), "ref", 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	store.AssertNumberOfCalls(t, "Query", 1)
}

func TestSimilarUnknownDocument(t *testing.T) {
	store := new(mockStore)
	store.On("Fetch", mock.Anything, "nope_0").Return(nil, model.NewError(model.ErrNotFound, "record nope_0 not found"))

	_, err := NewSearchService(new(mockEmbedder), store, testSearchCfg).Similar(context.Background(), "nope", 3)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, "Document not found", model.Message(err))
}

func TestSimilarRequiresDocID(t *testing.T) {
	_, err := NewSearchService(new(mockEmbedder), new(mockStore), testSearchCfg).Similar(context.Background(), "", 3)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, "Document ID is required", model.Message(err))
}

func TestStats(t *testing.T) {
	store := new(mockStore)
	stats := &model.Stats{TotalVectors: 7, Dimension: 1536, IndexName: "idx", Provider: "memory"}
	store.On("Stats", mock.Anything).Return(stats, nil)

	got, err := NewSearchService(new(mockEmbedder), store, testSearchCfg).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats, got)
}
