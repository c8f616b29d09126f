package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvector-go/internal/model"
)

func record(docID string, idx int, vec []float32, fileType string) model.Record {
	return model.Record{
		ID:     model.RecordID(docID, idx),
		Vector: vec,
		Text:   docID + " chunk",
		Metadata: model.ChunkMetadata{
			DocID:      docID,
			FileName:   docID + "." + fileType,
			FileType:   fileType,
			ChunkIndex: idx,
			UploadTime: "2024-01-01T00:00:00Z",
			Tags:       map[string]string{"team": "search"},
		},
	}
}

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore("test-index", 2)
	require.NoError(t, s.Upsert(context.Background(), []model.Record{
		record("a", 0, []float32{1, 0}, "txt"),
		record("a", 1, []float32{0.9, 0.1}, "txt"),
		record("b", 0, []float32{0, 1}, "pdf"),
	}))
	return s
}

func TestMemoryStoreQueryOrdersByScore(t *testing.T) {
	s := seeded(t)

	matches, err := s.Query(context.Background(), []float32{1, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a_0", matches[0].Record.ID)
	assert.Equal(t, "a_1", matches[1].Record.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryStoreQueryReturnsCopies(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	matches, err := s.Query(ctx, []float32{1, 0}, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	matches[0].Record.Vector[0] = -1
	matches[0].Record.Metadata.Tags["team"] = "changed"

	got, err := s.Fetch(ctx, "a_0")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Vector)
	assert.Equal(t, "search", got.Metadata.Tags["team"])

	again, err := s.Query(ctx, []float32{1, 0}, 1, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "a_0", again[0].Record.ID)
	assert.InDelta(t, 1.0, again[0].Score, 1e-9)
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	matches, err := s.Query(ctx, []float32{1, 0}, 10, Filter{Equals: map[string]string{"file_type": "pdf"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Record.Metadata.DocID)

	matches, err = s.Query(ctx, []float32{1, 0}, 10, Filter{ExcludeDocID: "a"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Record.Metadata.DocID)

	matches, err = s.Query(ctx, []float32{1, 0}, 10, Filter{Equals: map[string]string{"team": "search", "chunk_index": "1"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a_1", matches[0].Record.ID)

	matches, err = s.Query(ctx, []float32{1, 0}, 10, Filter{Equals: map[string]string{"missing": "x"}})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	r := record("a", 0, []float32{0, 1}, "txt")
	r.Text = "replaced"
	require.NoError(t, s.Upsert(ctx, []model.Record{r}))

	got, err := s.Fetch(ctx, "a_0")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.Text)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalVectors)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, "memory", stats.Provider)
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := NewMemoryStore("idx", 2)
	err := s.Upsert(context.Background(), []model.Record{record("a", 0, []float32{1, 2, 3}, "txt")})
	assert.ErrorIs(t, err, model.ErrVectorStore)

	_, err = s.Query(context.Background(), []float32{1}, 1, Filter{})
	assert.ErrorIs(t, err, model.ErrVectorStore)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "b_0"))
	assert.ErrorIs(t, s.Delete(ctx, "b_0"), model.ErrNotFound)

	_, err := s.Fetch(ctx, "b_0")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryStoreDeleteDocument(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	n, err := s.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.DeleteDocument(ctx, "a")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryStoreListDocuments(t *testing.T) {
	s := seeded(t)

	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, model.DocumentSummary{DocID: "a", FileName: "a.txt", FileType: "txt", UploadTime: "2024-01-01T00:00:00Z", ChunkCount: 2}, docs[0])
	assert.Equal(t, 1, docs[1].ChunkCount)
}

func TestFilterMatches(t *testing.T) {
	m := model.ChunkMetadata{DocID: "d", FileName: "f.txt", FileType: "txt"}
	assert.True(t, Filter{}.Matches(m))
	assert.True(t, Filter{Equals: map[string]string{"filename": "f.txt"}}.Matches(m))
	assert.False(t, Filter{Equals: map[string]string{"filename": "g.txt"}}.Matches(m))
	assert.False(t, Filter{ExcludeDocID: "d"}.Matches(m))
}
