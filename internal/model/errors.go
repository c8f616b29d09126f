package model

import (
	"errors"
	"fmt"
)

// 错误分类。调用方通过 errors.Is 判断类别，HTTP 层据此映射状态码。
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrLoad                = errors.New("document load failed")
	ErrValidation          = errors.New("validation failed")
	ErrFileTooLarge        = fmt.Errorf("file too large: %w", ErrValidation)
	ErrNotFound            = errors.New("not found")
	ErrEmbeddingAPI        = errors.New("embedding api error")
	ErrVectorStore         = errors.New("vector store error")
)

// Error 携带错误类别、面向用户的消息和底层原因。
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 同时暴露类别和原因，使 errors.Is 对两者都成立。
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewError 创建一个指定类别的错误。
func NewError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError 为底层错误附加类别和消息。
func WrapError(kind error, err error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Message 返回适合直接展示给用户的错误消息。
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Kind 返回错误类别的机器可读名称。
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		return "unsupported_file_type"
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrLoad):
		return "load_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmbeddingAPI):
		return "embedding_api_error"
	case errors.Is(err, ErrVectorStore):
		return "vector_store_error"
	default:
		return "internal_error"
	}
}
