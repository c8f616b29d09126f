// Package tika 提供了一个与 Apache Tika 服务器交互的客户端，用于提取内置解析器不支持的格式。
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"docvector-go/internal/config"
	"docvector-go/pkg/loader"
	"docvector-go/pkg/log"
	"docvector-go/pkg/retry"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
	http      *http.Client
	policy    retry.Policy
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.LoaderConfig, policy retry.Policy) *Client {
	return &Client{
		serverURL: strings.TrimRight(cfg.TikaURL, "/"),
		http:      &http.Client{Timeout: cfg.TikaTimeout},
		policy:    policy,
	}
}

// Register 将 types 中的扩展名注册到 Registry，由 Tika 负责解析。
func (c *Client) Register(r *loader.Registry, types []string) {
	for _, t := range types {
		r.Register(t, c.ParseFunc(t))
	}
	log.Infof("Tika 解析已启用, 服务器: %s, 类型: %v", c.serverURL, types)
}

// ParseFunc 返回使用 Tika 解析指定扩展名的 loader.ParseFunc。
func (c *Client) ParseFunc(fileType string) loader.ParseFunc {
	contentType := detectMimeType(fileType)
	return func(ctx context.Context, content []byte) (string, error) {
		return c.ExtractText(ctx, content, contentType)
	}
}

// ExtractText 调用 Tika 提取纯文本。网络错误和 5xx 会按重试策略重试。
func (c *Client) ExtractText(ctx context.Context, content []byte, contentType string) (string, error) {
	return retry.DoWithResult(ctx, c.policy, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Accept", "text/plain")
		req.Header.Set("Content-Type", contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", retry.Transient(fmt.Errorf("调用 Tika 失败: %w", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", retry.Transient(fmt.Errorf("读取 Tika 响应失败: %w", err))
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode >= http.StatusInternalServerError {
				return "", retry.Transient(err)
			}
			return "", err
		}
		return string(body), nil
	})
}

// detectMimeType 根据文件扩展名判断 Content-Type
func detectMimeType(fileType string) string {
	ext := "." + config.NormalizeExtension(fileType)
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}
