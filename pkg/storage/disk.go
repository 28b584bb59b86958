package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"model-viewer-go/pkg/log"
)

// DiskStore 将模型文件保存在本地目录中，用于单机部署和测试。
type DiskStore struct {
	root string
}

// NewDiskStore 创建目录（如不存在）并返回 DiskStore。
func NewDiskStore(root string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// Put 以 O_EXCL 方式创建文件，写入失败时删除半成品。
func (s *DiskStore) Put(ctx context.Context, r io.Reader, size int64, suggestedName, contentType string) (string, error) {
	key := NewKey(suggestedName)
	path := s.ResolvePath(key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", ErrKeyExists
		}
		return "", err
	}

	_, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Warnf("[DiskStore] 清理未完成的文件失败, path: %s, error: %v", path, rmErr)
		}
		return "", copyErr
	}
	return key, nil
}

func (s *DiskStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.ResolvePath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.ResolvePath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ResolvePath 返回存储键对应的绝对路径。键中的目录部分会被剥离。
func (s *DiskStore) ResolvePath(key string) string {
	return filepath.Join(s.root, filepath.Base(key))
}

func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.ResolvePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// ctxReader 在每次读取前检查 context，使调用方可以中止大文件写入。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
