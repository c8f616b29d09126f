// Package pipeline 定义了文件处理的核心流程：提取文本、切块、向量化、写入向量库。
package pipeline

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"docvector-go/internal/model"
	"docvector-go/pkg/embedding"
	"docvector-go/pkg/loader"
	"docvector-go/pkg/log"
	"docvector-go/pkg/vectorstore"
)

// IngestRequest 描述一次待处理的上传。
type IngestRequest struct {
	DocID      string
	FileName   string
	FileType   string
	Content    []byte
	Tags       map[string]string
	UploadedAt time.Time
}

// IngestResult 是处理完成后的结果。
type IngestResult struct {
	DocID      string
	ChunkCount int
	CharCount  int
}

// Processor 封装了文件处理的所有依赖和逻辑。
type Processor struct {
	loader       loader.Loader
	splitter     *Splitter
	embedder     embedding.Client
	store        vectorstore.Store
	modelVersion string
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(l loader.Loader, splitter *Splitter, embedder embedding.Client, store vectorstore.Store, modelVersion string) *Processor {
	return &Processor{
		loader:       l,
		splitter:     splitter,
		embedder:     embedder,
		store:        store,
		modelVersion: modelVersion,
	}
}

// Ingest 是文件处理的主函数。任何一步失败都会中止整个处理，不做部分写入的恢复。
func (p *Processor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	log.Infof("[Processor] 开始处理文件, DocID: %s, FileName: %s", req.DocID, req.FileName)

	// 1. 提取文本
	text, err := p.loader.Load(ctx, req.FileType, req.Content)
	if err != nil {
		log.Errorf("[Processor] 提取文本失败, FileName: %s, Error: %v", req.FileName, err)
		return nil, err
	}
	charCount := utf8.RuneCountInString(text)
	log.Infof("[Processor] 步骤1: 文本提取成功, 内容长度: %d 字符", charCount)

	// 2. 文本切块
	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		log.Warnf("[Processor] 未生成任何文本分块, 处理中止, FileName: %s", req.FileName)
		return nil, model.NewError(model.ErrLoad, "no extractable text in %s", req.FileName)
	}
	log.Infof("[Processor] 步骤2: 文本分块完成, chunkSize: %d, chunkOverlap: %d, 共生成 %d 个分块",
		p.splitter.ChunkSize, p.splitter.ChunkOverlap, len(chunks))

	// 3. 批量向量化
	vectors, err := p.embedder.CreateEmbeddings(ctx, chunks)
	if err != nil {
		log.Errorf("[Processor] 向量化失败, DocID: %s, Error: %v", req.DocID, err)
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, model.NewError(model.ErrEmbeddingAPI, "got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	log.Infof("[Processor] 步骤3: 向量化完成, 共 %d 个向量", len(vectors))

	// 4. 写入向量库
	uploadTime := req.UploadedAt.UTC().Format(model.UploadTimeFormat)
	records := make([]model.Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, model.Record{
			ID:     model.RecordID(req.DocID, i),
			Vector: vectors[i],
			Text:   chunk,
			Metadata: model.ChunkMetadata{
				DocID:        req.DocID,
				FileName:     req.FileName,
				FileType:     req.FileType,
				ChunkIndex:   i,
				UploadTime:   uploadTime,
				ModelVersion: p.modelVersion,
				Tags:         req.Tags,
			},
		})
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		log.Errorf("[Processor] 写入向量库失败, DocID: %s, Error: %v", req.DocID, err)
		return nil, fmt.Errorf("写入分块失败: %w", err)
	}

	log.Infof("[Processor] 文件处理成功完成, DocID: %s, 分块数: %d", req.DocID, len(records))
	return &IngestResult{DocID: req.DocID, ChunkCount: len(records), CharCount: charCount}, nil
}
