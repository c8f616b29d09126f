// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docvector-go/internal/model"
	"docvector-go/pkg/log"
)

// StatusCode 将错误类别映射为 HTTP 状态码。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, model.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrLoad):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrEmbeddingAPI), errors.Is(err, model.ErrVectorStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError 是错误转换为 JSON 响应的唯一出口。
func respondError(c *gin.Context, op string, err error) {
	status := StatusCode(err)
	message := model.Message(err)
	if status == http.StatusInternalServerError {
		log.Error(op+": unexpected error", err)
		message = "Internal server error"
	} else if status >= http.StatusInternalServerError {
		log.Error(op+": upstream failure", err)
	} else {
		log.Warnf("%s: %v", op, err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"error":   model.Kind(err),
		"message": message,
	})
}

// NotFound 处理未注册的路由。
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"code":    http.StatusNotFound,
		"error":   "not_found",
		"message": "Not found",
	})
}
