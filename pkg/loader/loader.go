// Package loader 负责从上传的文件内容中提取纯文本。
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docvector-go/internal/model"
)

// Loader 将指定类型的文件内容转换为纯文本。
type Loader interface {
	Load(ctx context.Context, fileType string, content []byte) (string, error)
}

// ParseFunc 解析一种文件格式。
type ParseFunc func(ctx context.Context, content []byte) (string, error)

// Plain 将不需要 context 的本地解析函数适配为 ParseFunc。
func Plain(fn func(content []byte) (string, error)) ParseFunc {
	return func(_ context.Context, content []byte) (string, error) {
		return fn(content)
	}
}

// Registry 按扩展名分发到对应的解析器。
type Registry struct {
	parsers map[string]ParseFunc
}

// New 创建包含 pdf、txt、docx、xlsx 解析器的 Registry。
func New() *Registry {
	return &Registry{parsers: map[string]ParseFunc{
		"pdf":  Plain(parsePDF),
		"txt":  Plain(parseText),
		"docx": Plain(parseDocx),
		"xlsx": Plain(parseXlsx),
	}}
}

// Register 注册或替换一个扩展名的解析器。
func (r *Registry) Register(fileType string, fn ParseFunc) {
	r.parsers[normalize(fileType)] = fn
}

// Supports 判断扩展名是否有可用的解析器。
func (r *Registry) Supports(fileType string) bool {
	_, ok := r.parsers[normalize(fileType)]
	return ok
}

// Types 返回所有已注册的扩展名。
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Load 实现 Loader 接口。
func (r *Registry) Load(ctx context.Context, fileType string, content []byte) (text string, err error) {
	fn, ok := r.parsers[normalize(fileType)]
	if !ok {
		return "", model.NewError(model.ErrUnsupportedFileType, "unsupported file type: %q", fileType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// 第三方解析器遇到畸形文件时可能 panic
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = model.WrapError(model.ErrLoad, fmt.Errorf("%v", rec), "failed to parse %s file", normalize(fileType))
		}
	}()

	text, err = fn(ctx, content)
	if err != nil {
		return "", model.WrapError(model.ErrLoad, err, "failed to parse %s file", normalize(fileType))
	}
	return text, nil
}

func normalize(fileType string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))
}
