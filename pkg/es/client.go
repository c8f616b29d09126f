// Package es 提供了基于 Elasticsearch dense_vector 索引的向量库实现。
package es

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"docvector-go/internal/config"
)

// NewClient 根据配置创建 Elasticsearch 客户端。
func NewClient(esCfg config.ElasticsearchConfig, timeout time.Duration) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: esCfg.Addresses,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		APIKey:    esCfg.APIKey,
		CloudID:   esCfg.CloudID,
		Transport: &http.Transport{
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: esCfg.InsecureSkipVerify},
			ResponseHeaderTimeout: timeout,
		},
		// 重试由 Store 统一处理
		DisableRetry: true,
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}
	return client, nil
}
