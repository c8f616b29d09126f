package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// multipart 编码的边界和字段头带来的额外字节
const multipartSlack = 1 << 20

// RequestSizeLimit 拒绝 Content-Length 超过上限的请求，并限制实际读取的字节数。
func RequestSizeLimit(maxFileSize int64) gin.HandlerFunc {
	limit := maxFileSize + multipartSlack
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"code":    http.StatusRequestEntityTooLarge,
				"error":   "file_too_large",
				"message": fmt.Sprintf("File too large: maximum size is %d bytes", maxFileSize),
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
