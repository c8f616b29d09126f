package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvector-go/internal/model"
	"docvector-go/pkg/embedding"
	"docvector-go/pkg/loader"
	"docvector-go/pkg/vectorstore"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

func (m *mockEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	v, _ := args.Get(0).([][]float32)
	return v, args.Error(1)
}

var uploadedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestIngestStoresChunksWithMetadata(t *testing.T) {
	store := vectorstore.NewMemoryStore("idx", 16)
	p := NewProcessor(loader.New(), NewSplitter(20, 5), embedding.NewHashingClient(16), store, "test-model")

	text := strings.Repeat("alpha beta gamma ", 4)
	res, err := p.Ingest(context.Background(), IngestRequest{
		DocID:      "doc1",
		FileName:   "notes.txt",
		FileType:   "txt",
		Content:    []byte(text),
		Tags:       map[string]string{"team": "search"},
		UploadedAt: uploadedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "doc1", res.DocID)
	assert.Equal(t, len(NewSplitter(20, 5).Split(text)), res.ChunkCount)

	rec, err := store.Fetch(context.Background(), "doc1_1")
	require.NoError(t, err)
	assert.Equal(t, model.ChunkMetadata{
		DocID:        "doc1",
		FileName:     "notes.txt",
		FileType:     "txt",
		ChunkIndex:   1,
		UploadTime:   "2024-05-01T10:00:00Z",
		ModelVersion: "test-model",
		Tags:         map[string]string{"team": "search"},
	}, rec.Metadata)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.ChunkCount, stats.TotalVectors)
}

func TestIngestSendsAllChunksInOneCall(t *testing.T) {
	emb := new(mockEmbedder)
	emb.On("CreateEmbeddings", mock.Anything, []string{"abcd", "defg", "ghij"}).
		Return([][]float32{{1, 0}, {0, 1}, {1, 1}}, nil).Once()

	store := vectorstore.NewMemoryStore("idx", 2)
	p := NewProcessor(loader.New(), NewSplitter(4, 1), emb, store, "m")

	res, err := p.Ingest(context.Background(), IngestRequest{DocID: "d", FileName: "a.txt", FileType: "txt", Content: []byte("abcdefghij"), UploadedAt: uploadedAt})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunkCount)
	emb.AssertExpectations(t)
}

func TestIngestEmptyTextIsLoadError(t *testing.T) {
	emb := new(mockEmbedder)
	p := NewProcessor(loader.New(), NewSplitter(10, 2), emb, vectorstore.NewMemoryStore("idx", 2), "m")

	_, err := p.Ingest(context.Background(), IngestRequest{DocID: "d", FileName: "empty.txt", FileType: "txt", Content: []byte("  \n ")})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrLoad)
	emb.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestIngestUnsupportedTypeSkipsEmbedding(t *testing.T) {
	emb := new(mockEmbedder)
	p := NewProcessor(loader.New(), NewSplitter(10, 2), emb, vectorstore.NewMemoryStore("idx", 2), "m")

	_, err := p.Ingest(context.Background(), IngestRequest{DocID: "d", FileName: "a.exe", FileType: "exe", Content: []byte("MZ")})
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
	emb.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestIngestEmbeddingFailureWritesNothing(t *testing.T) {
	emb := new(mockEmbedder)
	emb.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(nil, model.WrapError(model.ErrEmbeddingAPI, errors.New("401"), "invalid api key"))

	store := vectorstore.NewMemoryStore("idx", 2)
	p := NewProcessor(loader.New(), NewSplitter(10, 2), emb, store, "m")

	_, err := p.Ingest(context.Background(), IngestRequest{DocID: "d", FileName: "a.txt", FileType: "txt", Content: []byte("hello world")})
	assert.ErrorIs(t, err, model.ErrEmbeddingAPI)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectors)
}

func TestIngestStoreFailureKeepsKind(t *testing.T) {
	emb := embedding.NewHashingClient(4)
	// 维度不匹配会被向量库拒绝
	p := NewProcessor(loader.New(), NewSplitter(10, 2), emb, vectorstore.NewMemoryStore("idx", 8), "m")

	_, err := p.Ingest(context.Background(), IngestRequest{DocID: "d", FileName: "a.txt", FileType: "txt", Content: []byte("hello world")})
	assert.ErrorIs(t, err, model.ErrVectorStore)
}
