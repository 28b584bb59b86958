// Package service 包含了应用的业务逻辑层。
package service

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"model-viewer-go/internal/config"
	"model-viewer-go/internal/model"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/storage"
	"model-viewer-go/pkg/tasks"
	"model-viewer-go/pkg/thumbnail"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
	"gorm.io/datatypes"
)

const (
	maxNameLength = 100
	maxTagLength  = 50
	sniffLength   = 3072
)

// IngestRequest 是一次上传的全部输入，Reader 由传输层提供。
type IngestRequest struct {
	Reader   io.Reader
	FileName string
	MimeType string
	// Size 是调用方声明的大小，未知时为 -1。
	Size     int64
	Name     *string
	Tags     []string
	IsPublic *bool
	ClientIP string
}

// IngestionService 接口定义了模型文件入库的业务操作。
type IngestionService interface {
	Ingest(ctx context.Context, req IngestRequest) (*model.Asset, error)
}

type ingestionService struct {
	assets           repository.AssetRepository
	store            storage.ContentStore
	thumbs           thumbnail.Provider
	publisher        EventPublisher
	cfg              config.UploadConfig
	defaultThumbnail string
	thumbTimeout     time.Duration
}

// NewIngestionService 创建一个新的 IngestionService 实例。
func NewIngestionService(
	assets repository.AssetRepository,
	store storage.ContentStore,
	thumbs thumbnail.Provider,
	publisher EventPublisher,
	uploadCfg config.UploadConfig,
	thumbCfg config.ThumbnailConfig,
) IngestionService {
	if uploadCfg.MaxFileSize <= 0 {
		uploadCfg.MaxFileSize = config.DefaultMaxFileSize
	}
	defaultThumb := thumbCfg.DefaultURL
	if defaultThumb == "" {
		defaultThumb = config.DefaultThumbnailURL
	}
	timeout := time.Duration(thumbCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ingestionService{
		assets:           assets,
		store:            store,
		thumbs:           thumbs,
		publisher:        publisher,
		cfg:              uploadCfg,
		defaultThumbnail: defaultThumb,
		thumbTimeout:     timeout,
	}
}

// Ingest 校验并保存一个模型文件，成功时文件与索引记录同时存在，失败时两者都不存在。
func (s *ingestionService) Ingest(ctx context.Context, req IngestRequest) (*model.Asset, error) {
	log.Infof("[IngestionService] 开始处理上传, fileName: %s, mimeType: %s, size: %d", req.FileName, req.MimeType, req.Size)

	name, err := resolveDisplayName(req.Name, req.FileName)
	if err != nil {
		return nil, err
	}
	clientTags, err := normalizeTags(req.Tags)
	if err != nil {
		return nil, err
	}
	if !s.mimeAllowed(req.MimeType) {
		log.Warnf("[IngestionService] 不支持的 MIME 类型: %s", req.MimeType)
		return nil, newError(KindUnsupportedType, "Only GLB and GLTF files are allowed")
	}
	format, ok := FormatFromFileName(req.FileName)
	if !ok {
		log.Warnf("[IngestionService] 不支持的文件扩展名: %s", req.FileName)
		return nil, newError(KindUnsupportedExtension, "Only .glb and .gltf files are allowed")
	}
	if req.Size > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}
	if req.Size == 0 {
		return nil, validationError("File is empty", FieldError{Field: "model", Message: "file must not be empty"})
	}

	digest, _ := blake2b.New256(nil)
	counter := &limitedReader{r: req.Reader, remaining: s.cfg.MaxFileSize}
	br := bufio.NewReaderSize(io.TeeReader(counter, digest), sniffLength)
	head, _ := br.Peek(sniffLength)
	detected := mimetype.Detect(head).String()

	// 1. 写入文件
	key, err := s.store.Put(ctx, br, req.Size, req.FileName, req.MimeType)
	if err != nil {
		if errors.Is(err, errFileTooLarge) || counter.remaining < 0 {
			log.Warnf("[IngestionService] 上传过程中超出大小限制, fileName: %s", req.FileName)
			return nil, s.tooLarge()
		}
		log.Errorf("[IngestionService] 写入存储失败, fileName: %s, err: %v", req.FileName, err)
		return nil, persistenceFailure("Failed to store model file", err)
	}
	if counter.read == 0 {
		s.reclaim(key)
		return nil, validationError("File is empty", FieldError{Field: "model", Message: "file must not be empty"})
	}
	log.Infof("[IngestionService] 文件已写入存储, key: %s, bytes: %d", key, counter.read)

	// 2. 缩略图失败时使用默认图，不影响入库
	location := s.store.ResolvePath(key)
	thumb := s.generateThumbnail(ctx, location)

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	asset := &model.Asset{
		Name:         name,
		OriginalName: filepath.Base(req.FileName),
		StorageKey:   key,
		StoragePath:  location,
		URL:          strings.TrimRight(s.cfg.PublicURLPrefix, "/") + "/" + key,
		ThumbnailURL: thumb,
		Format:       format,
		Size:         counter.read,
		UploaderIP:   req.ClientIP,
		IsPublic:     isPublic,
		Tags:         datatypes.NewJSONType(mergeTags(DeriveTags(name), clientTags)),
		Metadata: datatypes.JSONMap{
			"originalName":     filepath.Base(req.FileName),
			"mimeType":         req.MimeType,
			"detectedMimeType": detected,
			"blake2b":          hexDigest(digest),
		},
	}

	// 3. 写入索引，失败时回收已写入的文件
	if err := s.assets.Create(ctx, asset); err != nil {
		log.Errorf("[IngestionService] 创建资产记录失败, key: %s, err: %v", key, err)
		s.reclaim(key)
		return nil, persistenceFailure("Failed to save model record", err)
	}

	// 4. 上传计数置为 1
	finalized, err := s.assets.IncrementField(ctx, asset.ID, repository.CounterUploads, 1)
	if err != nil {
		log.Errorf("[IngestionService] 更新上传计数失败, id: %s, err: %v", asset.ID, err)
		if _, delErr := s.assets.Delete(context.Background(), asset.ID); delErr != nil {
			log.Errorf("[IngestionService] 回滚资产记录失败, id: %s, err: %v", asset.ID, delErr)
		}
		s.reclaim(key)
		return nil, persistenceFailure("Failed to finalize model record", err)
	}

	publishEvent(ctx, s.publisher, tasks.AssetIngested, finalized.ID)
	log.Infof("[IngestionService] 模型入库成功, id: %s, name: %s, format: %s", finalized.ID, finalized.Name, finalized.Format)
	return finalized, nil
}

func (s *ingestionService) tooLarge() *Error {
	return newError(KindTooLarge, "File too large. Maximum size is "+model.FormatSize(s.cfg.MaxFileSize))
}

// reclaim 删除已写入的文件，失败只记录日志。
func (s *ingestionService) reclaim(key string) {
	if err := s.store.Delete(context.Background(), key); err != nil {
		log.Warnw("[IngestionService] 回收存储文件失败 (StorageReclamationFailure)", "key", key, "error", err)
	}
}

func (s *ingestionService) generateThumbnail(ctx context.Context, location string) string {
	if s.thumbs == nil {
		return s.defaultThumbnail
	}
	tctx, cancel := context.WithTimeout(ctx, s.thumbTimeout)
	defer cancel()
	url, err := s.thumbs.Generate(tctx, location)
	if err != nil || url == "" {
		log.Warnf("[IngestionService] 生成缩略图失败，使用默认缩略图, location: %s, err: %v", location, err)
		return s.defaultThumbnail
	}
	return url
}

func (s *ingestionService) mimeAllowed(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	for _, allowed := range s.cfg.AllowedMimeTypes {
		if strings.EqualFold(mt, allowed) {
			return true
		}
	}
	return false
}

// FormatFromFileName 根据扩展名（不区分大小写）推断模型格式。
func FormatFromFileName(fileName string) (string, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".glb":
		return model.FormatGLB, true
	case ".gltf":
		return model.FormatGLTF, true
	}
	return "", false
}

func resolveDisplayName(declared *string, fileName string) (string, error) {
	if declared != nil {
		name := strings.TrimSpace(*declared)
		if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLength {
			return "", validationError("Validation failed", FieldError{Field: "name", Message: "Name must be between 1 and 100 characters"})
		}
		return name, nil
	}
	base := filepath.Base(fileName)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		name = base
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name, nil
}

// DeriveTags 从名称中提取标签：小写，按空白、连字符、下划线切分，保留长度大于 2 的词并去重。
func DeriveTags(name string) []string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
	})
	tags := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, w)
	}
	return tags
}

// normalizeTags 清洗调用方提供的标签：去空白、小写、去重。
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLength {
			return nil, validationError("Validation failed", FieldError{Field: "tags", Message: "Each tag must be at most 50 characters"})
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

func mergeTags(derived, extra []string) []string {
	seen := make(map[string]bool, len(derived)+len(extra))
	out := make([]string, 0, len(derived)+len(extra))
	for _, list := range [][]string{derived, extra} {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func hexDigest(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

var errFileTooLarge = errors.New("file exceeds maximum size")

// limitedReader 统计读取的字节数，超过上限时返回 errFileTooLarge，使存储层中止写入并清理残留。
type limitedReader struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errFileTooLarge
	}
	// 多读一个字节用来判断是否超限
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errFileTooLarge
	}
	return n, err
}
