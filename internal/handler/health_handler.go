package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServiceName 是健康检查返回的服务名。
const ServiceName = "docvector-server"

// Health 是存活探针，不检查下游依赖。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": ServiceName,
	})
}
