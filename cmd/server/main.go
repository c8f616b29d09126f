// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"docvector-go/internal/config"
	"docvector-go/internal/pipeline"
	"docvector-go/internal/router"
	"docvector-go/internal/service"
	"docvector-go/pkg/database"
	"docvector-go/pkg/embedding"
	"docvector-go/pkg/es"
	"docvector-go/pkg/kafka"
	"docvector-go/pkg/loader"
	"docvector-go/pkg/log"
	"docvector-go/pkg/retry"
	"docvector-go/pkg/storage"
	"docvector-go/pkg/tika"
	"docvector-go/pkg/vectorstore"
)

func main() {
	// 1. 初始化配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		// 日志尚未初始化，直接使用默认格式输出
		log.Init("info", "console", "")
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()
	policy := retry.FromConfig(cfg.Retry)

	// 3. 初始化 Redis（可选，用于向量缓存）
	rdb, err := database.NewRedis(initCtx, cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// 4. 初始化 Embedding 客户端
	var embedder embedding.Client
	switch cfg.Embedding.Provider {
	case config.EmbeddingProviderHashing:
		embedder = embedding.NewHashingClient(cfg.Embedding.Dimensions)
		log.Warnf("使用本地 hashing 向量化实现, 仅适用于开发和测试")
	default:
		embedder = embedding.NewClient(cfg.Embedding,
			embedding.WithRetryPolicy(policy),
			embedding.WithCache(embedding.NewRedisCache(rdb, cfg.Embedding.CacheTTL)),
		)
	}

	// 5. 初始化向量库
	store, err := newVectorStore(initCtx, cfg, policy)
	if err != nil {
		log.Fatalf("向量库初始化失败: %v", err)
	}

	// 6. 初始化可选的原始文件归档和事件发布
	var archive service.DocumentArchive
	if cfg.MinIO.Enabled {
		a, err := storage.NewArchive(initCtx, cfg.MinIO)
		if err != nil {
			log.Fatalf("MinIO 初始化失败: %v", err)
		}
		archive = a
	}
	var events service.EventPublisher
	publisher := kafka.NewPublisher(cfg.Kafka)
	if publisher != nil {
		events = publisher
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Errorf("关闭 Kafka 生产者失败: %v", err)
			}
		}()
	}

	// 7. 初始化文件处理管道和 Service (依赖注入)
	registry := loader.New()
	if cfg.Loader.TikaURL != "" {
		tika.NewClient(cfg.Loader, policy).Register(registry, cfg.Loader.TikaTypes)
	}
	processor := pipeline.NewProcessor(
		registry,
		pipeline.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap),
		embedder,
		store,
		cfg.Embedding.Model,
	)
	documentService := service.NewDocumentService(processor, store, cfg.Upload, archive, events)
	searchService := service.NewSearchService(embedder, store, cfg.Search)

	// 7.1 导入 seed 目录中的文件，已存在同名文档则跳过
	seedCtx, cancelSeed := context.WithCancel(context.Background())
	defer cancelSeed()
	go initSeedFiles(seedCtx, cfg.Upload.SeedDir, documentService)

	// 8. 创建路由引擎
	r := router.New(cfg.Server, cfg.Upload, documentService, searchService)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")
	cancelSeed()

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

func newVectorStore(ctx context.Context, cfg *config.Config, policy retry.Policy) (vectorstore.Store, error) {
	if cfg.VectorStore.Provider == config.ProviderMemory {
		log.Warnf("使用内存向量库, 进程退出后数据丢失")
		return vectorstore.NewMemoryStore(cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions), nil
	}
	client, err := es.NewClient(cfg.Elasticsearch, cfg.VectorStore.Timeout)
	if err != nil {
		return nil, err
	}
	esStore, err := es.NewStore(ctx, client, cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions, policy)
	if err != nil {
		return nil, err
	}
	return esStore, nil
}

// initSeedFiles 扫描目录下文件并通过标准上传流程导入（幂等，按文件名判断）。
func initSeedFiles(ctx context.Context, dir string, docService service.DocumentService) {
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	docs, err := docService.List(ctx)
	if err != nil {
		log.Warnf("initSeedFiles: 读取已有文档失败，跳过初始化导入: %v", err)
		return
	}
	existing := make(map[string]bool, len(docs))
	for _, d := range docs {
		existing[d.FileName] = true
	}

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fileName := service.SanitizeFileName(d.Name())
		if existing[fileName] {
			log.Infof("initSeedFiles: 已存在，跳过: %s", fileName)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("initSeedFiles: 读取文件失败: %s, err=%v", path, err)
			return nil
		}
		res, err := docService.Upload(ctx, service.UploadRequest{FileName: d.Name(), Content: content})
		if err != nil {
			log.Warnf("initSeedFiles: 导入失败: %s, err=%v", path, err)
			return nil
		}
		log.Infof("initSeedFiles: 导入完成: %s, DocID: %s, 分块数: %d", res.FileName, res.DocID, res.ChunksCreated)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		log.Warnf("initSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
}
