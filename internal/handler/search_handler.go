package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docvector-go/internal/model"
	"docvector-go/internal/service"
)

// SearchHandler 负责处理检索相关的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

type searchRequest struct {
	Query  string                 `json:"query"`
	K      *int                   `json:"k"`
	Filter map[string]interface{} `json:"filter"`
}

type similarRequest struct {
	DocID string `json:"doc_id"`
	K     *int   `json:"k"`
}

// resolveK 将缺省的 k 转换为 0（使用默认值），显式给出的非正数视为参数错误。
func resolveK(k *int) (int, error) {
	if k == nil {
		return 0, nil
	}
	if *k <= 0 {
		return 0, model.NewError(model.ErrValidation, "k must be a positive integer")
	}
	return *k, nil
}

// toStringFilter 只接受标量值的等值过滤。
func toStringFilter(raw map[string]interface{}) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = fmt.Sprintf("%v", val)
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		default:
			return nil, model.NewError(model.ErrValidation, "filter %q must be a string, number or boolean", k)
		}
	}
	return out, nil
}

// Search 处理语义检索请求。
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "Search", model.WrapError(model.ErrValidation, err, "Invalid JSON body"))
		return
	}
	k, err := resolveK(req.K)
	if err != nil {
		respondError(c, "Search", err)
		return
	}
	filter, err := toStringFilter(req.Filter)
	if err != nil {
		respondError(c, "Search", err)
		return
	}

	results, err := h.searchService.Search(c.Request.Context(), req.Query, k, filter)
	if err != nil {
		respondError(c, "Search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"query":         req.Query,
		"results":       results,
		"total_results": len(results),
	})
}

// Similar 处理相似文档检索请求。
func (h *SearchHandler) Similar(c *gin.Context) {
	var req similarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "Similar", model.WrapError(model.ErrValidation, err, "Invalid JSON body"))
		return
	}
	k, err := resolveK(req.K)
	if err != nil {
		respondError(c, "Similar", err)
		return
	}

	results, err := h.searchService.Similar(c.Request.Context(), req.DocID, k)
	if err != nil {
		respondError(c, "Similar", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"reference_doc_id":  req.DocID,
		"similar_documents": results,
		"total_results":     len(results),
	})
}

// Stats 返回向量索引的统计信息。
func (h *SearchHandler) Stats(c *gin.Context) {
	stats, err := h.searchService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "Stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}
