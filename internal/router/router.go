// Package router 负责组装 gin 引擎和全部 HTTP 路由。
package router

import (
	"github.com/gin-gonic/gin"

	"docvector-go/internal/config"
	"docvector-go/internal/handler"
	"docvector-go/internal/middleware"
	"docvector-go/internal/service"
)

// New 创建注册好中间件和路由的 gin 引擎。
func New(cfg config.ServerConfig, uploadCfg config.UploadConfig, docService service.DocumentService, searchService service.SearchService) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestID(), middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.CORSOrigins))
	r.MaxMultipartMemory = uploadCfg.MaxFileSize

	documentHandler := handler.NewDocumentHandler(docService, uploadCfg.MaxFileSize)
	searchHandler := handler.NewSearchHandler(searchService)

	api := r.Group("/api")
	{
		documents := api.Group("/documents")
		{
			documents.POST("", middleware.RequestSizeLimit(uploadCfg.MaxFileSize), documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		search := api.Group("/search")
		{
			search.POST("", searchHandler.Search)
			search.POST("/similar", searchHandler.Similar)
			search.GET("/stats", searchHandler.Stats)
		}
	}

	r.GET("/health", handler.Health)
	r.NoRoute(handler.NotFound)
	return r
}
