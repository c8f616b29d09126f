// Package vectorstore 定义了向量库接口，以及用于本地开发和测试的内存实现。
package vectorstore

import (
	"context"
	"sort"

	"docvector-go/internal/model"
)

// Store 是托管向量数据库的封装。排序和分数由具体服务决定。
type Store interface {
	// Upsert 按 ID 覆盖写入记录，写入后立即可被检索。
	Upsert(ctx context.Context, records []model.Record) error
	// Query 返回最多 k 条与 vector 最相近的记录，按分数降序。
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]model.Match, error)
	// Delete 删除一条记录，ID 不存在时返回 model.ErrNotFound。
	Delete(ctx context.Context, id string) error
	// Fetch 读取一条记录及其向量。
	Fetch(ctx context.Context, id string) (*model.Record, error)
	// DeleteDocument 删除一个文档的全部分块，返回删除数量；没有任何分块时返回 model.ErrNotFound。
	DeleteDocument(ctx context.Context, docID string) (int, error)
	ListDocuments(ctx context.Context) ([]model.DocumentSummary, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// Filter 是元数据等值过滤条件。
type Filter struct {
	Equals       map[string]string
	ExcludeDocID string
}

// Matches 判断记录元数据是否满足过滤条件。
func (f Filter) Matches(m model.ChunkMetadata) bool {
	if f.ExcludeDocID != "" && m.DocID == f.ExcludeDocID {
		return false
	}
	for k, want := range f.Equals {
		got, ok := m.Field(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// SortSummaries 按上传时间倒序排列，时间相同时按 doc_id 排序。
func SortSummaries(docs []model.DocumentSummary) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadTime != docs[j].UploadTime {
			return docs[i].UploadTime > docs[j].UploadTime
		}
		return docs[i].DocID < docs[j].DocID
	})
}
