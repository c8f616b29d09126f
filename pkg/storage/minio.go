// Package storage 提供了与对象存储服务（如 MinIO）交互的功能，用于归档上传的原始文件。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docvector-go/internal/config"
	"docvector-go/pkg/log"
)

// Archive 将原始文件保存在 documents/<doc_id>/<filename> 下。它不是文档状态的来源。
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewArchive(ctx context.Context, cfg config.MinIOConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", cfg.BucketName)
	}
	return &Archive{client: client, bucket: cfg.BucketName}, nil
}

// DocumentPrefix 返回一个文档所有对象的公共前缀。
func DocumentPrefix(docID string) string {
	return "documents/" + docID + "/"
}

// ObjectName 返回原始文件的对象名。
func ObjectName(docID, fileName string) string {
	return DocumentPrefix(docID) + path.Base(fileName)
}

func contentType(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Put 上传原始文件。
func (a *Archive) Put(ctx context.Context, docID, fileName string, content []byte) error {
	object := ObjectName(docID, fileName)
	_, err := a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType(fileName)})
	if err != nil {
		return fmt.Errorf("上传原始文件到 MinIO 失败, object: %s: %w", object, err)
	}
	log.Infof("原始文件已归档, bucket: %s, object: %s", a.bucket, object)
	return nil
}

// Remove 删除一个文档的全部归档对象。
func (a *Archive) Remove(ctx context.Context, docID string) error {
	objects := a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    DocumentPrefix(docID),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("列出 MinIO 对象失败: %w", obj.Err)
		}
		if err := a.client.RemoveObject(ctx, a.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除 MinIO 对象 %s 失败: %w", obj.Key, err)
		}
	}
	return nil
}
