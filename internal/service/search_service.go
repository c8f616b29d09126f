package service

import (
	"context"
	"errors"
	"strings"

	"docvector-go/internal/config"
	"docvector-go/internal/model"
	"docvector-go/pkg/embedding"
	"docvector-go/pkg/log"
	"docvector-go/pkg/vectorstore"
)

// SearchService 接口定义了检索相关的业务操作。
type SearchService interface {
	// Search 对查询文本做语义检索。k 为 0 时使用默认值。
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]model.SearchResult, error)
	// Similar 返回与指定文档最相似的其他文档，每个文档只保留得分最高的分块。
	Similar(ctx context.Context, docID string, k int) ([]model.SearchResult, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// 相似文档检索的候选数上限，与 Elasticsearch 的 num_candidates 上限一致
const maxSimilarCandidates = 10000

type searchService struct {
	embedder embedding.Client
	store    vectorstore.Store
	cfg      config.SearchConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embedder embedding.Client, store vectorstore.Store, cfg config.SearchConfig) SearchService {
	return &searchService{embedder: embedder, store: store, cfg: cfg}
}

func (s *searchService) resolveK(k int) (int, error) {
	if k == 0 {
		return s.cfg.DefaultK, nil
	}
	if k < 0 || k > s.cfg.MaxK {
		return 0, model.NewError(model.ErrValidation, "k must be between 1 and %d", s.cfg.MaxK)
	}
	return k, nil
}

func (s *searchService) Search(ctx context.Context, query string, k int, filter map[string]string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewError(model.ErrValidation, "Query is required")
	}
	k, err := s.resolveK(k)
	if err != nil {
		return nil, err
	}

	log.Infof("[SearchService] 开始检索, query_len: %d, k: %d, filter: %v", len(query), k, filter)
	vector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Query(ctx, vector, k, vectorstore.Filter{Equals: filter})
	if err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, model.NewSearchResult(m))
	}
	log.Infof("[SearchService] 检索完成, 返回 %d 条结果", len(results))
	return results, nil
}

func (s *searchService) Similar(ctx context.Context, docID string, k int) ([]model.SearchResult, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, model.NewError(model.ErrValidation, "Document ID is required")
	}
	k, err := s.resolveK(k)
	if err != nil {
		return nil, err
	}

	// 以文档第一个分块的向量作为参考，不重新向量化
	ref, err := s.store.Fetch(ctx, model.RecordID(docID, 0))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.WrapError(model.ErrNotFound, err, "Document not found")
		}
		return nil, err
	}

	// 单个大文档可能占满候选窗口，凑不够 k 个文档时翻倍候选数重查
	candidates := k * s.cfg.SimilarCandidatesFactor
	var results []model.SearchResult
	for {
		matches, err := s.store.Query(ctx, ref.Vector, candidates, vectorstore.Filter{ExcludeDocID: docID})
		if err != nil {
			return nil, err
		}
		results = collapseByDocument(matches, docID, k)
		if len(results) == k || len(matches) < candidates || candidates >= maxSimilarCandidates {
			break
		}
		candidates *= 2
		if candidates > maxSimilarCandidates {
			candidates = maxSimilarCandidates
		}
		log.Debugf("[SearchService] 候选不足, 扩大候选数重查, DocID: %s, candidates: %d", docID, candidates)
	}
	log.Infof("[SearchService] 相似文档检索完成, DocID: %s, 返回 %d 条结果", docID, len(results))
	return results, nil
}

// collapseByDocument 按得分顺序为每个文档保留第一个分块，最多 k 个。
func collapseByDocument(matches []model.Match, docID string, k int) []model.SearchResult {
	seen := make(map[string]bool, k)
	results := make([]model.SearchResult, 0, k)
	for _, m := range matches {
		if m.Record.Metadata.DocID == docID || seen[m.Record.Metadata.DocID] {
			continue
		}
		seen[m.Record.Metadata.DocID] = true
		results = append(results, model.NewSearchResult(m))
		if len(results) == k {
			break
		}
	}
	return results
}

func (s *searchService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.store.Stats(ctx)
}
