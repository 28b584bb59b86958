// Package storage 提供模型文件的持久化存储（ContentStore）。
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrObjectNotFound 表示存储键没有对应的文件。
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrKeyExists 表示存储键已被占用，Put 永远不会覆盖已有文件。
	ErrKeyExists = errors.New("storage: key already exists")
)

// ContentStore 是模型文件字节的持久化存储。
type ContentStore interface {
	// Put 写入一个新文件并返回生成的存储键。写入失败或被取消时不会留下残缺文件。
	Put(ctx context.Context, r io.Reader, size int64, suggestedName, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete 是幂等的，删除不存在的键不是错误。
	Delete(ctx context.Context, key string) error
	ResolvePath(key string) string
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

// Presigner 由支持签名直链的存储实现，下载时可以让客户端直接从存储取文件。
type Presigner interface {
	PresignedURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error)
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
	underscores = regexp.MustCompile(`_+`)
)

const maxStemLength = 200

// SanitizeFilename 将文件名中的不安全字符替换为下划线。
func SanitizeFilename(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxStemLength {
		s = s[:maxStemLength]
	}
	return s
}

// NewKey 根据建议文件名生成存储键：<stem>_<uuid><ext>。
// 随机后缀保证同名文件并发上传时也不会冲突。
func NewKey(suggestedName string) string {
	base := filepath.Base(suggestedName)
	ext := strings.ToLower(filepath.Ext(base))
	stem := SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "model"
	}
	return stem + "_" + uuid.NewString() + SanitizeFilename(ext)
}
