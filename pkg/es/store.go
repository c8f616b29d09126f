package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
	"docvector-go/pkg/log"
	"docvector-go/pkg/retry"
	"docvector-go/pkg/vectorstore"
)

const maxAggDocuments = 10000

// Store 将分块记录保存在一个 Elasticsearch 索引中，使用 kNN 与 cosine 相似度检索。
type Store struct {
	client    *elasticsearch.Client
	indexName string
	dimension int
	policy    retry.Policy
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore 创建 Store，并在索引不存在时按向量维度创建索引。
func NewStore(ctx context.Context, client *elasticsearch.Client, indexName string, dimension int, policy retry.Policy) (*Store, error) {
	s := &Store{client: client, indexName: indexName, dimension: dimension, policy: policy}
	if err := s.createIndexIfNotExists(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// indexMapping 返回分块索引的 mapping。
func (s *Store) indexMapping() string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"doc_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"filename": { "type": "keyword" },
				"file_type": { "type": "keyword" },
				"upload_time": { "type": "date" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" },
				"tags": { "type": "flattened" }
			}
		}
	}`, s.dimension)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (s *Store) createIndexIfNotExists(ctx context.Context) error {
	status, _, err := s.perform(ctx, "检查索引", func() esapi.Request {
		return esapi.IndicesExistsRequest{Index: []string{s.indexName}}
	}, true)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		log.Infof("索引 '%s' 已存在", s.indexName)
		return nil
	}

	_, _, err = s.perform(ctx, "创建索引", func() esapi.Request {
		return esapi.IndicesCreateRequest{Index: s.indexName, Body: strings.NewReader(s.indexMapping())}
	}, false)
	if err != nil {
		return err
	}
	log.Infof("索引 '%s' 创建成功, 向量维度: %d", s.indexName, s.dimension)
	return nil
}

// perform 执行请求并返回状态码和响应体。传输错误、429 和 5xx 会按策略重试。
// allowNotFound 为 true 时 404 不视为错误。
func (s *Store) perform(ctx context.Context, op string, build func() esapi.Request, allowNotFound bool) (int, []byte, error) {
	type result struct {
		status int
		body   []byte
	}
	res, err := retry.DoWithResult(ctx, s.policy, func() (result, error) {
		resp, err := build().Do(ctx, s.client)
		if err != nil {
			if ctx.Err() != nil {
				return result{}, ctx.Err()
			}
			return result{}, retry.Transient(model.WrapError(model.ErrVectorStore, err, "%s失败", op))
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return result{}, retry.Transient(model.WrapError(model.ErrVectorStore, err, "%s: 读取响应失败", op))
		}
		if resp.StatusCode == http.StatusNotFound && allowNotFound {
			return result{status: resp.StatusCode, body: body}, nil
		}
		if resp.IsError() {
			storeErr := model.NewError(model.ErrVectorStore, "%s: Elasticsearch 返回 %s", op, resp.Status())
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return result{}, retry.Transient(storeErr)
			}
			log.Errorf("%s时 Elasticsearch 返回错误: %s", op, string(body))
			return result{}, storeErr
		}
		return result{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, model.WrapError(model.ErrVectorStore, ctxErr, "%s被取消", op)
		}
		log.Errorf("%s失败: %v", op, err)
		return 0, nil, err
	}
	return res.status, res.body, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Upsert 使用 bulk index 操作按 ID 覆盖写入，并立即刷新。
func (s *Store) Upsert(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return model.NewError(model.ErrVectorStore, "record %s has dimension %d, index expects %d", r.ID, len(r.Vector), s.dimension)
		}
		meta := map[string]map[string]string{"index": {"_index": s.indexName, "_id": r.ID}}
		if err := enc.Encode(meta); err != nil {
			return model.WrapError(model.ErrVectorStore, err, "failed to encode bulk request")
		}
		if err := enc.Encode(model.NewEsDocument(r)); err != nil {
			return model.WrapError(model.ErrVectorStore, err, "failed to encode bulk request")
		}
	}
	payload := buf.Bytes()

	_, body, err := s.perform(ctx, "批量写入分块", func() esapi.Request {
		return esapi.BulkRequest{Index: s.indexName, Body: bytes.NewReader(payload), Refresh: "true"}
	}, false)
	if err != nil {
		return err
	}

	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.WrapError(model.ErrVectorStore, err, "failed to decode bulk response")
	}
	if resp.Errors {
		for _, item := range resp.Items {
			for _, res := range item {
				if res.Error != nil {
					return model.NewError(model.ErrVectorStore, "failed to index record %s: %s: %s", res.ID, res.Error.Type, res.Error.Reason)
				}
			}
		}
		return model.NewError(model.ErrVectorStore, "bulk request reported errors")
	}
	log.Infof("成功写入 %d 条分块到索引 '%s'", len(records), s.indexName)
	return nil
}

type searchHit struct {
	ID     string           `json:"_id"`
	Score  float64          `json:"_score"`
	Source model.EsDocument `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// buildFilter 将过滤条件转换为 bool 查询。
func buildFilter(filter vectorstore.Filter) map[string]interface{} {
	must := make([]map[string]interface{}, 0, len(filter.Equals))
	for key, value := range filter.Equals {
		field := key
		switch key {
		case "doc_id", "filename", "file_type", "chunk_index", "upload_time", "model_version":
		default:
			field = "tags." + key
		}
		must = append(must, map[string]interface{}{"term": map[string]interface{}{field: value}})
	}
	boolQuery := map[string]interface{}{"filter": must}
	if filter.ExcludeDocID != "" {
		boolQuery["must_not"] = []map[string]interface{}{
			{"term": map[string]interface{}{"doc_id": filter.ExcludeDocID}},
		}
	}
	return map[string]interface{}{"bool": boolQuery}
}

const maxNumCandidates = 10000

func (s *Store) Query(ctx context.Context, vector []float32, k int, filter vectorstore.Filter) ([]model.Match, error) {
	if len(vector) != s.dimension {
		return nil, model.NewError(model.ErrVectorStore, "query vector has dimension %d, index expects %d", len(vector), s.dimension)
	}
	if k <= 0 {
		return []model.Match{}, nil
	}
	// kNN 要求 k <= num_candidates <= 10000
	if k > maxNumCandidates {
		k = maxNumCandidates
	}
	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	if numCandidates > maxNumCandidates {
		numCandidates = maxNumCandidates
	}
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": numCandidates,
			"filter":         buildFilter(filter),
		},
		"size":    k,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, model.WrapError(model.ErrVectorStore, err, "failed to encode search request")
	}

	_, body, err := s.perform(ctx, "向量检索", func() esapi.Request {
		return esapi.SearchRequest{Index: []string{s.indexName}, Body: bytes.NewReader(payload)}
	}, false)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.WrapError(model.ErrVectorStore, err, "failed to decode search response")
	}
	matches := make([]model.Match, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		if hit.Source.VectorID == "" {
			hit.Source.VectorID = hit.ID
		}
		matches = append(matches, model.Match{Record: hit.Source.ToRecord(), Score: hit.Score})
	}
	return matches, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	status, _, err := s.perform(ctx, "删除分块", func() esapi.Request {
		return esapi.DeleteRequest{Index: s.indexName, DocumentID: id, Refresh: "true"}
	}, true)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return model.NewError(model.ErrNotFound, "record %s not found", id)
	}
	return nil
}

type getResponse struct {
	Found  bool             `json:"found"`
	Source model.EsDocument `json:"_source"`
}

func (s *Store) Fetch(ctx context.Context, id string) (*model.Record, error) {
	status, body, err := s.perform(ctx, "读取分块", func() esapi.Request {
		return esapi.GetRequest{Index: s.indexName, DocumentID: id}
	}, true)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, model.NewError(model.ErrNotFound, "record %s not found", id)
	}
	var resp getResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.WrapError(model.ErrVectorStore, err, "failed to decode get response")
	}
	if !resp.Found {
		return nil, model.NewError(model.ErrNotFound, "record %s not found", id)
	}
	if resp.Source.VectorID == "" {
		resp.Source.VectorID = id
	}
	r := resp.Source.ToRecord()
	return &r, nil
}

// DeleteDocument 使用 delete_by_query 删除文档的全部分块。
func (s *Store) DeleteDocument(ctx context.Context, docID string) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"term": map[string]interface{}{"doc_id": docID}},
	})
	if err != nil {
		return 0, model.WrapError(model.ErrVectorStore, err, "failed to encode delete request")
	}
	refresh := true
	_, body, err := s.perform(ctx, "删除文档", func() esapi.Request {
		return esapi.DeleteByQueryRequest{
			Index:     []string{s.indexName},
			Body:      bytes.NewReader(payload),
			Refresh:   &refresh,
			Conflicts: "proceed",
		}
	}, false)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, model.WrapError(model.ErrVectorStore, err, "failed to decode delete response")
	}
	if resp.Deleted == 0 {
		return 0, model.NewError(model.ErrNotFound, "document %s not found", docID)
	}
	log.Infof("已从索引 '%s' 删除文档 %s 的 %d 个分块", s.indexName, docID, resp.Deleted)
	return resp.Deleted, nil
}

type aggResponse struct {
	Aggregations struct {
		Docs struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
				First    struct {
					Hits struct {
						Hits []searchHit `json:"hits"`
					} `json:"hits"`
				} `json:"first"`
			} `json:"buckets"`
		} `json:"docs"`
	} `json:"aggregations"`
}

// ListDocuments 通过 doc_id 的 terms 聚合得到文档列表。
func (s *Store) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"docs": map[string]interface{}{
				"terms": map[string]interface{}{"field": "doc_id", "size": maxAggDocuments},
				"aggs": map[string]interface{}{
					"first": map[string]interface{}{
						"top_hits": map[string]interface{}{
							"size":    1,
							"sort":    []map[string]interface{}{{"chunk_index": map[string]string{"order": "asc"}}},
							"_source": map[string]interface{}{"includes": []string{"doc_id", "filename", "file_type", "upload_time"}},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, model.WrapError(model.ErrVectorStore, err, "failed to encode aggregation request")
	}

	_, body, err := s.perform(ctx, "列出文档", func() esapi.Request {
		return esapi.SearchRequest{Index: []string{s.indexName}, Body: bytes.NewReader(payload)}
	}, false)
	if err != nil {
		return nil, err
	}

	var resp aggResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.WrapError(model.ErrVectorStore, err, "failed to decode aggregation response")
	}
	docs := make([]model.DocumentSummary, 0, len(resp.Aggregations.Docs.Buckets))
	for _, b := range resp.Aggregations.Docs.Buckets {
		sum := model.DocumentSummary{DocID: b.Key, ChunkCount: b.DocCount}
		if hits := b.First.Hits.Hits; len(hits) > 0 {
			sum.FileName = hits[0].Source.FileName
			sum.FileType = hits[0].Source.FileType
			sum.UploadTime = hits[0].Source.UploadTime
		}
		docs = append(docs, sum)
	}
	vectorstore.SortSummaries(docs)
	return docs, nil
}

// Stats 返回索引中的向量数量和 mapping 中声明的维度。
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	_, body, err := s.perform(ctx, "统计向量数量", func() esapi.Request {
		return esapi.CountRequest{Index: []string{s.indexName}}
	}, false)
	if err != nil {
		return nil, err
	}
	var count struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &count); err != nil {
		return nil, model.WrapError(model.ErrVectorStore, err, "failed to decode count response")
	}

	return &model.Stats{
		TotalVectors: count.Count,
		Dimension:    s.mappedDimension(ctx),
		IndexName:    s.indexName,
		Provider:     config.ProviderElasticsearch,
	}, nil
}

// mappedDimension 读取索引 mapping 中的向量维度，失败时使用配置值。
func (s *Store) mappedDimension(ctx context.Context) int {
	_, body, err := s.perform(ctx, "读取索引 mapping", func() esapi.Request {
		return esapi.IndicesGetMappingRequest{Index: []string{s.indexName}}
	}, false)
	if err != nil {
		return s.dimension
	}
	var mappings map[string]struct {
		Mappings struct {
			Properties struct {
				Vector struct {
					Dims int `json:"dims"`
				} `json:"vector"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(body, &mappings); err != nil {
		return s.dimension
	}
	for _, m := range mappings {
		if dims := m.Mappings.Properties.Vector.Dims; dims > 0 {
			return dims
		}
	}
	return s.dimension
}
