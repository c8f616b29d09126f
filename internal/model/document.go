package model

import (
	"fmt"
	"time"
)

// UploadTimeFormat 是 upload_time 字段使用的时间格式。
const UploadTimeFormat = time.RFC3339

// ChunkMetadata 是每条向量记录附带的元数据，任何记录都能追溯到来源文件和分块序号。
type ChunkMetadata struct {
	DocID        string            `json:"doc_id"`
	FileName     string            `json:"filename"`
	FileType     string            `json:"file_type"`
	ChunkIndex   int               `json:"chunk_index"`
	UploadTime   string            `json:"upload_time"`
	ModelVersion string            `json:"model_version,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// Field 返回可用于等值过滤的元数据字段值。
func (m ChunkMetadata) Field(key string) (string, bool) {
	switch key {
	case "doc_id":
		return m.DocID, true
	case "filename":
		return m.FileName, true
	case "file_type":
		return m.FileType, true
	case "chunk_index":
		return fmt.Sprintf("%d", m.ChunkIndex), true
	case "upload_time":
		return m.UploadTime, true
	case "model_version":
		return m.ModelVersion, true
	}
	v, ok := m.Tags[key]
	return v, ok
}

// Record 是向量库中的一行：一个分块及其向量。
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata ChunkMetadata
}

// RecordID 生成分块记录的唯一标识。
func RecordID(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", docID, chunkIndex)
}

// Match 是一次向量检索的命中结果。
type Match struct {
	Record Record
	Score  float64
}

// SearchResult 定义了返回给客户端的检索结果。
type SearchResult struct {
	Content         string        `json:"content"`
	Metadata        ChunkMetadata `json:"metadata"`
	SimilarityScore float64       `json:"similarity_score"`
}

// NewSearchResult 将检索命中转换为对外结果。
func NewSearchResult(m Match) SearchResult {
	return SearchResult{
		Content:         m.Record.Text,
		Metadata:        m.Record.Metadata,
		SimilarityScore: m.Score,
	}
}

// DocumentSummary 是按 doc_id 聚合后的文档信息。
type DocumentSummary struct {
	DocID      string `json:"doc_id"`
	FileName   string `json:"filename"`
	FileType   string `json:"file_type"`
	UploadTime string `json:"upload_time"`
	ChunkCount int    `json:"chunk_count"`
}

// Stats 是向量索引的统计信息。
type Stats struct {
	TotalVectors int    `json:"total_vectors"`
	Dimension    int    `json:"dimension"`
	IndexName    string `json:"index_name"`
	Provider     string `json:"provider"`
}

// 文档事件类型。
const (
	EventDocumentIngested = "document.ingested"
	EventDocumentDeleted  = "document.deleted"
)

// DocumentEvent 是文档生命周期变更时发布的事件。
type DocumentEvent struct {
	Type       string    `json:"type"`
	DocID      string    `json:"doc_id"`
	FileName   string    `json:"filename,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	At         time.Time `json:"at"`
}
