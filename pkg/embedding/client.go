// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
	"docvector-go/pkg/log"
	"docvector-go/pkg/retry"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// CreateEmbeddings returns one vector per input text, in input order.
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type openAICompatibleClient struct {
	cfg     config.EmbeddingConfig
	client  *http.Client
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	cache   Cache
}

// Option customises the client.
type Option func(*openAICompatibleClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *openAICompatibleClient) { c.client = hc }
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *openAICompatibleClient) { c.policy = p }
}

// WithCache enables the embedding cache. A nil cache is ignored.
func WithCache(cache Cache) Option {
	return func(c *openAICompatibleClient) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// NewClient creates a new embedding client for an OpenAI-compatible API.
func NewClient(cfg config.EmbeddingConfig, opts ...Option) Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	c := &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  noopCache{},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[EmbeddingClient] 熔断器 %s 状态变化: %s -> %s", name, from, to)
		},
		// 只有瞬时故障计入熔断，参数错误等 4xx 不计入
		IsSuccessful: func(err error) bool {
			return err == nil || !retry.IsTransient(err)
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateEmbedding calls the OpenAI-compatible API to get the vector for a given text.
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CreateEmbeddings embeds texts in batches of cfg.BatchSize, serving repeats from the cache.
func (c *openAICompatibleClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	var missIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(ctx, c.cfg.Model, text); ok && len(vec) == c.cfg.Dimensions {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
	}
	if hits := len(texts) - len(missIdx); hits > 0 {
		log.Debugf("[EmbeddingClient] 缓存命中 %d/%d", hits, len(texts))
	}

	for start := 0; start < len(missIdx); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batch := make([]string, 0, end-start)
		for _, i := range missIdx[start:end] {
			batch = append(batch, texts[i])
		}

		result, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, i := range missIdx[start:end] {
			vectors[i] = result[j]
			c.cache.Set(ctx, c.cfg.Model, texts[i], result[j])
		}
	}
	return vectors, nil
}

// embedBatch sends one request, with rate limiting, circuit breaking and retries.
func (c *openAICompatibleClient) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, batch_size: %d", c.cfg.Model, len(batch))

	vectors, err := retry.DoWithResult(ctx, c.policy, func() ([][]float32, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, batch)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, model.WrapError(model.ErrEmbeddingAPI, err, "embedding service temporarily unavailable")
			}
			return nil, err
		}
		return out.([][]float32), nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, model.ErrEmbeddingAPI) {
			err = model.WrapError(model.ErrEmbeddingAPI, ctxErr, "embedding request canceled")
		}
		if !errors.Is(err, model.ErrEmbeddingAPI) {
			err = model.WrapError(model.ErrEmbeddingAPI, err, "embedding request failed")
		}
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, err
	}

	log.Infof("[EmbeddingClient] 成功从 Embedding API 获取 %d 个向量, 维度: %d", len(vectors), c.cfg.Dimensions)
	return vectors, nil
}

func (c *openAICompatibleClient) doRequest(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: c.cfg.Model,
		Input: batch,
	}
	// text-embedding-ada-002 不接受 dimensions 参数
	if !strings.HasPrefix(c.cfg.Model, "text-embedding-ada") {
		reqBody.Dimensions = c.cfg.Dimensions
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(model.WrapError(model.ErrEmbeddingAPI, err, "failed to call embedding api"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := model.NewError(model.ErrEmbeddingAPI, "embedding api returned %s%s", resp.Status, apiErrorDetail(body))
		log.Warnf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, retry.Transient(apiErr)
		}
		return nil, apiErr
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, model.WrapError(model.ErrEmbeddingAPI, err, "failed to decode embedding response")
	}
	if len(embeddingResp.Data) != len(batch) {
		return nil, model.NewError(model.ErrEmbeddingAPI, "embedding api returned %d vectors for %d inputs", len(embeddingResp.Data), len(batch))
	}

	vectors := make([][]float32, len(batch))
	for _, item := range embeddingResp.Data {
		if item.Index < 0 || item.Index >= len(batch) || vectors[item.Index] != nil {
			return nil, model.NewError(model.ErrEmbeddingAPI, "embedding api returned invalid index %d", item.Index)
		}
		if len(item.Embedding) != c.cfg.Dimensions {
			return nil, model.NewError(model.ErrEmbeddingAPI, "embedding has dimension %d, expected %d", len(item.Embedding), c.cfg.Dimensions)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func apiErrorDetail(body []byte) string {
	var e apiErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return ": " + e.Error.Message
	}
	return ""
}
