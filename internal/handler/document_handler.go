package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docvector-go/internal/model"
	"docvector-go/internal/service"
	"docvector-go/pkg/log"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService  service.DocumentService
	maxFileSize int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{docService: docService, maxFileSize: maxFileSize}
}

// Upload 处理 multipart 文件上传：字段 file 为文件，可选字段 tags 为 JSON 对象。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, "Upload", model.NewError(model.ErrFileTooLarge, "File too large: maximum size is %d bytes", h.maxFileSize))
			return
		}
		respondError(c, "Upload", model.NewError(model.ErrValidation, "No file provided"))
		return
	}
	if fileHeader.Filename == "" {
		respondError(c, "Upload", model.NewError(model.ErrValidation, "No file selected"))
		return
	}
	if fileHeader.Size > h.maxFileSize {
		respondError(c, "Upload", model.NewError(model.ErrFileTooLarge, "File too large: maximum size is %d bytes", h.maxFileSize))
		return
	}

	var tags map[string]string
	if raw := c.PostForm("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			respondError(c, "Upload", model.WrapError(model.ErrValidation, err, "tags must be a JSON object of strings"))
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, "Upload", model.WrapError(model.ErrLoad, err, "failed to read uploaded file"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		respondError(c, "Upload", model.WrapError(model.ErrLoad, err, "failed to read uploaded file"))
		return
	}

	res, err := h.docService.Upload(c.Request.Context(), service.UploadRequest{
		FileName: fileHeader.Filename,
		Content:  content,
		Tags:     tags,
	})
	if err != nil {
		respondError(c, "Upload", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"doc_id":         res.DocID,
		"filename":       res.FileName,
		"file_type":      res.FileType,
		"chunks_created": res.ChunksCreated,
		"message":        "Document processed successfully",
	})
}

// List 返回所有文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docService.List(c.Request.Context())
	if err != nil {
		respondError(c, "ListDocuments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"documents": docs,
		"total":     len(docs),
	})
}

// Delete 删除一个文档的全部分块，成功时返回 204。
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("id")
	deleted, err := h.docService.Delete(c.Request.Context(), docID)
	if err != nil {
		respondError(c, "DeleteDocument", err)
		return
	}
	log.Infof("DeleteDocument: 删除文档 %s, 分块数 %d", docID, deleted)
	c.Status(http.StatusNoContent)
}
