// Package client 实现了文档向量服务的 HTTP 客户端和交互式控制台。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docvector-go/internal/model"
)

// DefaultServerURL 是服务端的默认地址。
const DefaultServerURL = "http://127.0.0.1:5000"

// APIError 是服务端返回的错误响应。
type APIError struct {
	StatusCode int    `json:"code"`
	Kind       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// HealthResponse 是 /health 的响应。
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// UploadResponse 是上传成功后的响应。
type UploadResponse struct {
	Success       bool   `json:"success"`
	DocID         string `json:"doc_id"`
	FileName      string `json:"filename"`
	FileType      string `json:"file_type"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

// ListResponse 是文档列表的响应。
type ListResponse struct {
	Success   bool                    `json:"success"`
	Documents []model.DocumentSummary `json:"documents"`
	Total     int                     `json:"total"`
}

// SearchResponse 是语义检索的响应。
type SearchResponse struct {
	Success      bool                 `json:"success"`
	Query        string               `json:"query"`
	Results      []model.SearchResult `json:"results"`
	TotalResults int                  `json:"total_results"`
}

// SimilarResponse 是相似文档检索的响应。
type SimilarResponse struct {
	Success          bool                 `json:"success"`
	ReferenceDocID   string               `json:"reference_doc_id"`
	SimilarDocuments []model.SearchResult `json:"similar_documents"`
	TotalResults     int                  `json:"total_results"`
}

// StatsResponse 是索引统计的响应。
type StatsResponse struct {
	Success bool        `json:"success"`
	Stats   model.Stats `json:"stats"`
}

// Client 是文档向量服务的 REST 客户端。
type Client struct {
	baseURL string
	http    *http.Client
}

// New 创建一个客户端。timeout 为 0 时不设置超时。
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL 返回服务端地址。
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		apiErr.StatusCode = resp.StatusCode
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", out)
}

// Health 检查服务是否可用。
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload 以 multipart 方式上传本地文件。
func (c *Client) Upload(ctx context.Context, path string, tags map[string]string) (*UploadResponse, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		raw, err := json.Marshal(tags)
		if err != nil {
			return nil, err
		}
		if err := w.WriteField("tags", string(raw)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/documents", body, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List 返回所有文档。
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var out ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/documents", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search 执行语义检索。k 为 0 时由服务端使用默认值。
func (c *Client) Search(ctx context.Context, query string, k int, filter map[string]string) (*SearchResponse, error) {
	payload := map[string]interface{}{"query": query}
	if k > 0 {
		payload["k"] = k
	}
	if len(filter) > 0 {
		payload["filter"] = filter
	}
	var out SearchResponse
	if err := c.postJSON(ctx, "/api/search", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Similar 查找与指定文档相似的文档。
func (c *Client) Similar(ctx context.Context, docID string, k int) (*SimilarResponse, error) {
	payload := map[string]interface{}{"doc_id": docID}
	if k > 0 {
		payload["k"] = k
	}
	var out SimilarResponse
	if err := c.postJSON(ctx, "/api/search/similar", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete 删除文档及其所有分块。
func (c *Client) Delete(ctx context.Context, docID string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(docID), nil, "", nil)
}

// Stats 返回向量索引统计。
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var out StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/search/stats", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
