package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
)

// MemoryStore 是暴力余弦检索的内存实现，分数为 (1+cos)/2，与 Elasticsearch 的 cosine 相似度一致。
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]model.Record
	dimension int
	indexName string
}

// NewMemoryStore 创建一个空的内存向量库。
func NewMemoryStore(indexName string, dimension int) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]model.Record),
		dimension: dimension,
		indexName: indexName,
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, records []model.Record) error {
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return model.NewError(model.ErrVectorStore, "record %s has dimension %d, index expects %d", r.ID, len(r.Vector), s.dimension)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]model.Match, error) {
	if len(vector) != s.dimension {
		return nil, model.NewError(model.ErrVectorStore, "query vector has dimension %d, index expects %d", len(vector), s.dimension)
	}
	if k <= 0 {
		return []model.Match{}, nil
	}

	s.mu.RLock()
	matches := make([]model.Match, 0, len(s.records))
	for _, r := range s.records {
		if !filter.Matches(r.Metadata) {
			continue
		}
		matches = append(matches, model.Match{Record: r, Score: (1 + cosine(vector, r.Vector)) / 2})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	for i := range matches {
		matches[i].Record = cloneRecord(matches[i].Record)
	}
	return matches, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return model.NewError(model.ErrNotFound, "record %s not found", id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Fetch(ctx context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, model.NewError(model.ErrNotFound, "record %s not found", id)
	}
	r = cloneRecord(r)
	return &r, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, docID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, r := range s.records {
		if r.Metadata.DocID == docID {
			delete(s.records, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, model.NewError(model.ErrNotFound, "document %s not found", docID)
	}
	return deleted, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	s.mu.RLock()
	byDoc := make(map[string]*model.DocumentSummary)
	for _, r := range s.records {
		sum, ok := byDoc[r.Metadata.DocID]
		if !ok {
			sum = &model.DocumentSummary{
				DocID:      r.Metadata.DocID,
				FileName:   r.Metadata.FileName,
				FileType:   r.Metadata.FileType,
				UploadTime: r.Metadata.UploadTime,
			}
			byDoc[r.Metadata.DocID] = sum
		}
		sum.ChunkCount++
	}
	s.mu.RUnlock()

	docs := make([]model.DocumentSummary, 0, len(byDoc))
	for _, sum := range byDoc {
		docs = append(docs, *sum)
	}
	SortSummaries(docs)
	return docs, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &model.Stats{
		TotalVectors: len(s.records),
		Dimension:    s.dimension,
		IndexName:    s.indexName,
		Provider:     config.ProviderMemory,
	}, nil
}

// cloneRecord 复制向量和标签，库内数据不与调用方共享底层存储。
func cloneRecord(r model.Record) model.Record {
	r.Vector = append([]float32(nil), r.Vector...)
	if r.Metadata.Tags != nil {
		tags := make(map[string]string, len(r.Metadata.Tags))
		for k, v := range r.Metadata.Tags {
			tags[k] = v
		}
		r.Metadata.Tags = tags
	}
	return r
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
