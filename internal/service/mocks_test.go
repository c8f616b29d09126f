package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvector-go/internal/model"
	"docvector-go/internal/pipeline"
	"docvector-go/pkg/vectorstore"
)

type mockIngester struct{ mock.Mock }

func (m *mockIngester) Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*pipeline.IngestResult)
	return res, args.Error(1)
}

type mockArchive struct{ mock.Mock }

func (m *mockArchive) Put(ctx context.Context, docID, fileName string, content []byte) error {
	return m.Called(ctx, docID, fileName, content).Error(0)
}

func (m *mockArchive) Remove(ctx context.Context, docID string) error {
	return m.Called(ctx, docID).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, event model.DocumentEvent) error {
	return m.Called(ctx, event).Error(0)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Upsert(ctx context.Context, records []model.Record) error {
	return m.Called(ctx, records).Error(0)
}

func (m *mockStore) Query(ctx context.Context, vector []float32, k int, filter vectorstore.Filter) ([]model.Match, error) {
	args := m.Called(ctx, vector, k, filter)
	res, _ := args.Get(0).([]model.Match)
	return res, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Fetch(ctx context.Context, id string) (*model.Record, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*model.Record)
	return res, args.Error(1)
}

func (m *mockStore) DeleteDocument(ctx context.Context, docID string) (int, error) {
	args := m.Called(ctx, docID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]model.DocumentSummary)
	return res, args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context) (*model.Stats, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*model.Stats)
	return res, args.Error(1)
}

type mockEmbedder struct{ mock.Mock }

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
