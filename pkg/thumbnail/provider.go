// Package thumbnail 提供模型缩略图生成能力。生成失败从不影响上传流程。
package thumbnail

import (
	"context"
	"hash/fnv"
	"time"

	"model-viewer-go/internal/config"
)

// Provider 根据模型文件位置返回缩略图 URL。
type Provider interface {
	Generate(ctx context.Context, location string) (string, error)
}

// placeholderImages 是没有渲染服务时使用的示意图片。
var placeholderImages = []string{
	"https://images.unsplash.com/photo-1618005198919-d3d4b5a92ead",
	"https://images.unsplash.com/photo-1563089145-599997674d42",
	"https://images.unsplash.com/photo-1558618666-fcd25c85cd64",
	"https://images.unsplash.com/photo-1633332755192-727a05c4013d",
}

// PlaceholderProvider 按文件位置的哈希挑选一张固定的示意图。
type PlaceholderProvider struct{}

func (PlaceholderProvider) Generate(_ context.Context, location string) (string, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(location))
	idx := int(h.Sum32() % uint32(len(placeholderImages)))
	return placeholderImages[idx] + "?w=400&h=300&fit=crop", nil
}

// NewProvider 根据配置创建缩略图 Provider。
func NewProvider(cfg config.ThumbnailConfig) Provider {
	switch cfg.Provider {
	case "http":
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return NewHTTPProvider(cfg.ServerURL, timeout)
	default:
		return PlaceholderProvider{}
	}
}
