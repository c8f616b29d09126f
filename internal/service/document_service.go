// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
	"docvector-go/internal/pipeline"
	"docvector-go/pkg/log"
	"docvector-go/pkg/vectorstore"
)

// Ingester 执行一次文档入库。
type Ingester interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error)
}

// DocumentArchive 保存上传的原始文件。
type DocumentArchive interface {
	Put(ctx context.Context, docID, fileName string, content []byte) error
	Remove(ctx context.Context, docID string) error
}

// EventPublisher 发布文档生命周期事件。
type EventPublisher interface {
	Publish(ctx context.Context, event model.DocumentEvent) error
}

// UploadRequest 是一次文件上传。
type UploadRequest struct {
	FileName string
	Content  []byte
	Tags     map[string]string
}

// UploadResult 是上传处理完成后的结果。
type UploadResult struct {
	DocID         string
	FileName      string
	FileType      string
	ChunksCreated int
}

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	List(ctx context.Context) ([]model.DocumentSummary, error)
	// Delete 删除文档的全部分块，返回删除的分块数。
	Delete(ctx context.Context, docID string) (int, error)
}

type documentService struct {
	ingester  Ingester
	store     vectorstore.Store
	uploadCfg config.UploadConfig
	archive   DocumentArchive
	events    EventPublisher
	now       func() time.Time
}

// NewDocumentService 创建一个新的 DocumentService 实例。archive 和 events 可以为 nil。
func NewDocumentService(ingester Ingester, store vectorstore.Store, uploadCfg config.UploadConfig, archive DocumentArchive, events EventPublisher) DocumentService {
	return &documentService{
		ingester:  ingester,
		store:     store,
		uploadCfg: uploadCfg,
		archive:   archive,
		events:    events,
		now:       time.Now,
	}
}

// SanitizeFileName 去掉路径部分，只保留字母、数字、点、下划线和连字符。
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	var sb strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune('_')
		}
	}
	return strings.TrimLeft(sb.String(), "._")
}

// Upload 校验文件后执行入库，随后尽力归档原始文件并发布事件。
func (s *documentService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	fileName := SanitizeFileName(req.FileName)
	if fileName == "" {
		return nil, model.NewError(model.ErrValidation, "No file selected")
	}
	fileType := config.NormalizeExtension(filepath.Ext(fileName))
	if fileType == "" || !s.uploadCfg.IsAllowed(fileType) {
		return nil, model.NewError(model.ErrUnsupportedFileType, "File type not allowed. Allowed types: %s",
			strings.Join(s.uploadCfg.AllowedExtensions, ", "))
	}
	if int64(len(req.Content)) > s.uploadCfg.MaxFileSize {
		return nil, model.NewError(model.ErrFileTooLarge, "File too large: maximum size is %d bytes", s.uploadCfg.MaxFileSize)
	}
	if len(req.Content) == 0 {
		return nil, model.NewError(model.ErrLoad, "File %s is empty", fileName)
	}

	docID := uuid.NewString()
	log.Infof("[DocumentService] 接收上传, DocID: %s, FileName: %s, Size: %d", docID, fileName, len(req.Content))

	res, err := s.ingester.Ingest(ctx, pipeline.IngestRequest{
		DocID:      docID,
		FileName:   fileName,
		FileType:   fileType,
		Content:    req.Content,
		Tags:       req.Tags,
		UploadedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, docID, fileName, req.Content); err != nil {
			log.Warnf("[DocumentService] 归档原始文件失败, DocID: %s, Error: %v", docID, err)
		}
	}
	s.publish(ctx, model.DocumentEvent{
		Type:       model.EventDocumentIngested,
		DocID:      docID,
		FileName:   fileName,
		ChunkCount: res.ChunkCount,
	})

	return &UploadResult{DocID: docID, FileName: fileName, FileType: fileType, ChunksCreated: res.ChunkCount}, nil
}

// List 返回所有文档的汇总信息。
func (s *documentService) List(ctx context.Context) ([]model.DocumentSummary, error) {
	return s.store.ListDocuments(ctx)
}

// Delete 删除文档，不存在时返回 model.ErrNotFound。
func (s *documentService) Delete(ctx context.Context, docID string) (int, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return 0, model.NewError(model.ErrValidation, "Document ID is required")
	}
	deleted, err := s.store.DeleteDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return 0, model.WrapError(model.ErrNotFound, err, "Document not found")
		}
		return 0, err
	}
	log.Infof("[DocumentService] 文档已删除, DocID: %s, 分块数: %d", docID, deleted)

	if s.archive != nil {
		if err := s.archive.Remove(ctx, docID); err != nil {
			log.Warnf("[DocumentService] 删除归档文件失败, DocID: %s, Error: %v", docID, err)
		}
	}
	s.publish(ctx, model.DocumentEvent{Type: model.EventDocumentDeleted, DocID: docID, ChunkCount: deleted})
	return deleted, nil
}

func (s *documentService) publish(ctx context.Context, event model.DocumentEvent) {
	if s.events == nil {
		return
	}
	event.At = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warnf("[DocumentService] 发布文档事件失败, type: %s, DocID: %s, Error: %v", event.Type, event.DocID, err)
	}
}
