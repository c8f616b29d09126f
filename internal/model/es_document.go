// Package model 定义了文档、分块记录和检索结果等领域结构体。
package model

// EsDocument 定义了存储在 Elasticsearch 中的分块文档结构。
type EsDocument struct {
	VectorID     string            `json:"vector_id"` // 唯一标识，docID + "_" + chunkIndex
	DocID        string            `json:"doc_id"`
	ChunkIndex   int               `json:"chunk_index"`
	FileName     string            `json:"filename"`
	FileType     string            `json:"file_type"`
	UploadTime   string            `json:"upload_time"`
	TextContent  string            `json:"text_content"`
	Vector       []float32         `json:"vector,omitempty"` // 文本内容的向量表示
	ModelVersion string            `json:"model_version"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// ToRecord 将 ES 文档转换为通用的向量记录。
func (d EsDocument) ToRecord() Record {
	return Record{
		ID:     d.VectorID,
		Vector: d.Vector,
		Text:   d.TextContent,
		Metadata: ChunkMetadata{
			DocID:        d.DocID,
			FileName:     d.FileName,
			FileType:     d.FileType,
			ChunkIndex:   d.ChunkIndex,
			UploadTime:   d.UploadTime,
			ModelVersion: d.ModelVersion,
			Tags:         d.Tags,
		},
	}
}

// NewEsDocument 将向量记录转换为 ES 文档。
func NewEsDocument(r Record) EsDocument {
	return EsDocument{
		VectorID:     r.ID,
		DocID:        r.Metadata.DocID,
		ChunkIndex:   r.Metadata.ChunkIndex,
		FileName:     r.Metadata.FileName,
		FileType:     r.Metadata.FileType,
		UploadTime:   r.Metadata.UploadTime,
		TextContent:  r.Text,
		Vector:       r.Vector,
		ModelVersion: r.Metadata.ModelVersion,
		Tags:         r.Metadata.Tags,
	}
}
