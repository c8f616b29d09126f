// Package database 管理外部存储连接。
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"docvector-go/internal/config"
	"docvector-go/pkg/log"
)

// NewRedis 创建 Redis 客户端并测试连接。Addr 为空时返回 nil，表示不启用缓存。
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		log.Info("未配置 redis.addr, 向量缓存已禁用")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("连接 redis 失败: %w", err)
	}

	log.Infof("Redis 连接成功, addr: %s", cfg.Addr)
	return rdb, nil
}
