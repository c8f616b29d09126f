package client

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
)

// DefaultExtensions 是客户端本地校验使用的扩展名列表。
var DefaultExtensions = []string{"pdf", "txt", "docx", "xlsx"}

const maxContentPreview = 200

// ValidateFileType 在上传前检查文件扩展名。
func ValidateFileType(path string, allowed []string) error {
	ext := filepath.Ext(path)
	if (config.UploadConfig{AllowedExtensions: allowed}).IsAllowed(ext) {
		return nil
	}
	return fmt.Errorf("file type %q not supported. Allowed types: %s", ext, strings.Join(allowed, ", "))
}

// FormatError 返回适合展示的错误信息，服务端错误只显示 message。
func FormatError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "Error: " + apiErr.Message
	}
	return "Error: " + err.Error()
}

// FormatUpload 格式化上传结果。
func FormatUpload(r *UploadResponse) string {
	return fmt.Sprintf("Document uploaded successfully!\n  File: %s\n  Document ID: %s\n  Chunks created: %d",
		r.FileName, r.DocID, r.ChunksCreated)
}

// FormatDocuments 格式化文档列表。
func FormatDocuments(r *ListResponse) string {
	if len(r.Documents) == 0 {
		return "No documents found"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Documents (%d):\n", r.Total))
	for _, d := range r.Documents {
		fmt.Fprintf(&sb, "  - %s (ID: %s)\n", d.FileName, d.DocID)
		fmt.Fprintf(&sb, "    Chunks: %d, Uploaded: %s\n", d.ChunkCount, d.UploadTime)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatSearch 格式化检索结果。
func FormatSearch(r *SearchResponse) string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("No results found for query: '%s'", r.Query)
	}
	return formatResults(fmt.Sprintf("Search results for '%s':", r.Query), r.Results)
}

// FormatSimilar 格式化相似文档结果。
func FormatSimilar(r *SimilarResponse) string {
	if len(r.SimilarDocuments) == 0 {
		return fmt.Sprintf("No similar documents found for ID: %s", r.ReferenceDocID)
	}
	return formatResults(fmt.Sprintf("Similar to document %s:", r.ReferenceDocID), r.SimilarDocuments)
}

func formatResults(title string, results []model.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	for i, res := range results {
		fmt.Fprintf(&sb, "\n%d. Score: %.3f\n", i+1, res.SimilarityScore)
		fmt.Fprintf(&sb, "   Content: %s\n", preview(res.Content))
		fmt.Fprintf(&sb, "   File: %s (ID: %s)\n", res.Metadata.FileName, res.Metadata.DocID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatStats 格式化索引统计。
func FormatStats(r *StatsResponse) string {
	return fmt.Sprintf("Vector Store Statistics:\n  Total vectors: %d\n  Dimension: %d\n  Index: %s\n  Provider: %s",
		r.Stats.TotalVectors, r.Stats.Dimension, r.Stats.IndexName, r.Stats.Provider)
}

// preview 按字符截断内容。
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxContentPreview {
		return s
	}
	return string(runes[:maxContentPreview]) + "..."
}
