package service

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"model-viewer-go/internal/model"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/storage"
	"model-viewer-go/pkg/tasks"

	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 10
	DefaultSort      = "-createdAt"
	maxSearchLength  = 50
	statsTopN        = 5
)

// ListParams 是列表查询的调用方参数，零值表示使用默认值。
type ListParams struct {
	Page   int
	Limit  int
	Sort   string
	Format string
	Search string
	Tag    string
}

// Pagination 是分页元数据。
type Pagination struct {
	Page       int   `json:"currentPage"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// AssetPage 是一页资产及其分页信息和全局统计。
type AssetPage struct {
	Assets     []model.AssetSummary `json:"models"`
	Pagination Pagination           `json:"pagination"`
	Summary    model.CatalogSummary `json:"stats"`
}

// CatalogStats 是统计接口的完整返回。
type CatalogStats struct {
	Overall  model.CatalogSummary    `json:"overall"`
	ByFormat []model.FormatBreakdown `json:"byFormat"`
	Recent   []model.AssetSummary    `json:"recentModels"`
	Popular  []model.AssetSummary    `json:"popularModels"`
}

// UpdateAssetParams 是资产的部分更新参数。
type UpdateAssetParams struct {
	Name     *string
	Tags     *[]string
	IsPublic *bool
}

// Download 是一次下载的结果，调用方负责关闭 Body。
// RedirectURL 非空时表示文件由存储直链提供，此时 Body 为 nil。
type Download struct {
	Asset       *model.Asset
	Body        io.ReadCloser
	Size        int64
	FileName    string
	RedirectURL string
}

// CatalogService 接口定义了资产目录的查询、统计与维护操作。
type CatalogService interface {
	List(ctx context.Context, params ListParams) (*AssetPage, error)
	Get(ctx context.Context, id string) (*model.Asset, error)
	Download(ctx context.Context, id string) (*Download, error)
	Update(ctx context.Context, id string, params UpdateAssetParams) (*model.Asset, error)
	Delete(ctx context.Context, id string) (*model.Asset, error)
	Stats(ctx context.Context) (*CatalogStats, error)
	Aggregate(ctx context.Context) (model.CatalogSummary, error)
	BreakdownByFormat(ctx context.Context) ([]model.FormatBreakdown, error)
	TopByField(ctx context.Context, field string, n int) ([]model.AssetSummary, error)
}

type catalogService struct {
	assets        repository.AssetRepository
	store         storage.ContentStore
	publisher     EventPublisher
	presignExpiry time.Duration
}

// CatalogOption 调整 CatalogService 的可选行为。
type CatalogOption func(*catalogService)

// WithPresignedDownloads 让支持签名直链的存储以重定向方式提供下载，expiry<=0 时不生效。
func WithPresignedDownloads(expiry time.Duration) CatalogOption {
	return func(s *catalogService) {
		s.presignExpiry = expiry
	}
}

// NewCatalogService 创建一个新的 CatalogService 实例。
func NewCatalogService(assets repository.AssetRepository, store storage.ContentStore, publisher EventPublisher, opts ...CatalogOption) CatalogService {
	s := &catalogService{assets: assets, store: store, publisher: publisher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListQuery 校验并规范化列表参数，返回仓储层查询和最终使用的页码、页大小。
func ListQuery(params ListParams) (repository.AssetQuery, int, int, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit == 0 {
		limit = DefaultPageLimit
	}
	limit = repository.ClampLimit(limit)

	sort := strings.TrimSpace(params.Sort)
	if sort == "" {
		sort = DefaultSort
	}
	column, desc, ok := repository.ParseSort(sort)
	if !ok {
		return repository.AssetQuery{}, 0, 0, validationError("Validation failed",
			FieldError{Field: "sort", Message: "sort must be one of createdAt, name, views, size, downloads (prefix with - for descending)"})
	}

	format := strings.ToUpper(strings.TrimSpace(params.Format))
	if format != "" && format != model.FormatGLB && format != model.FormatGLTF {
		return repository.AssetQuery{}, 0, 0, validationError("Validation failed",
			FieldError{Field: "format", Message: "format must be GLB or GLTF"})
	}

	search := strings.TrimSpace(params.Search)
	if utf8.RuneCountInString(search) > maxSearchLength {
		return repository.AssetQuery{}, 0, 0, validationError("Validation failed",
			FieldError{Field: "search", Message: "Search query must be between 1 and 50 characters"})
	}

	return repository.AssetQuery{
		Format:     format,
		Tag:        strings.ToLower(strings.TrimSpace(params.Tag)),
		Search:     search,
		SortColumn: column,
		SortDesc:   desc,
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}, page, limit, nil
}

// NewPagination 计算分页元数据，totalPages = ceil(total/limit)。
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

func (s *catalogService) List(ctx context.Context, params ListParams) (*AssetPage, error) {
	q, page, limit, err := ListQuery(params)
	if err != nil {
		return nil, err
	}

	assets, total, err := s.assets.Query(ctx, q)
	if err != nil {
		log.Errorf("[CatalogService] 查询资产列表失败: %v", err)
		return nil, persistenceFailure("Failed to fetch models", err)
	}
	summary, err := s.Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	return &AssetPage{
		Assets:     summaries(assets),
		Pagination: NewPagination(page, limit, total),
		Summary:    summary,
	}, nil
}

// Get 返回完整的资产记录，并将浏览次数加一。
func (s *catalogService) Get(ctx context.Context, id string) (*model.Asset, error) {
	asset, err := s.assets.IncrementField(ctx, id, repository.CounterViews, 1)
	if err != nil {
		return nil, mapRepoError(err, "Model not found")
	}
	return asset, nil
}

// Download 打开资产文件并将下载次数加一，记录或文件缺失时返回 NotFound。
func (s *catalogService) Download(ctx context.Context, id string) (*Download, error) {
	asset, err := s.assets.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "Model not found")
	}
	fileName := storage.SanitizeFilename(asset.Name) + "." + strings.ToLower(asset.Format)

	if presigner, ok := s.store.(storage.Presigner); ok && s.presignExpiry > 0 {
		return s.presignedDownload(ctx, presigner, asset, fileName)
	}

	body, size, err := s.store.Open(ctx, asset.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Warnf("[CatalogService] 资产记录存在但文件缺失, id: %s, key: %s", id, asset.StorageKey)
			return nil, notFound("File not found on server")
		}
		return nil, persistenceFailure("Failed to open model file", err)
	}

	updated, err := s.assets.IncrementField(ctx, id, repository.CounterDownloads, 1)
	if err != nil {
		_ = body.Close()
		return nil, mapRepoError(err, "Model not found")
	}

	return &Download{
		Asset:    updated,
		Body:     body,
		Size:     size,
		FileName: fileName,
	}, nil
}

func (s *catalogService) presignedDownload(ctx context.Context, presigner storage.Presigner, asset *model.Asset, fileName string) (*Download, error) {
	exists, err := s.store.Exists(ctx, asset.StorageKey)
	if err != nil {
		return nil, persistenceFailure("Failed to open model file", err)
	}
	if !exists {
		log.Warnf("[CatalogService] 资产记录存在但文件缺失, id: %s, key: %s", asset.ID, asset.StorageKey)
		return nil, notFound("File not found on server")
	}

	link, err := presigner.PresignedURL(ctx, asset.StorageKey, fileName, s.presignExpiry)
	if err != nil {
		return nil, persistenceFailure("Failed to open model file", err)
	}

	updated, err := s.assets.IncrementField(ctx, asset.ID, repository.CounterDownloads, 1)
	if err != nil {
		return nil, mapRepoError(err, "Model not found")
	}
	return &Download{
		Asset:       updated,
		Size:        updated.Size,
		FileName:    fileName,
		RedirectURL: link,
	}, nil
}

func (s *catalogService) Update(ctx context.Context, id string, params UpdateAssetParams) (*model.Asset, error) {
	update := repository.AssetUpdate{IsPublic: params.IsPublic}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLength {
			return nil, validationError("Validation failed", FieldError{Field: "name", Message: "Name must be between 1 and 100 characters"})
		}
		update.Name = &name
	}
	if params.Tags != nil {
		tags, err := normalizeTags(*params.Tags)
		if err != nil {
			return nil, err
		}
		update.Tags = &tags
	}

	asset, err := s.assets.Update(ctx, id, update)
	if err != nil {
		return nil, mapRepoError(err, "Model not found")
	}
	publishEvent(ctx, s.publisher, tasks.AssetUpdated, asset.ID)
	log.Infof("[CatalogService] 资产已更新, id: %s", id)
	return asset, nil
}

// Delete 删除索引记录并回收存储，回收失败只记录日志。
func (s *catalogService) Delete(ctx context.Context, id string) (*model.Asset, error) {
	asset, err := s.assets.Delete(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "Model not found")
	}
	if err := s.store.Delete(ctx, asset.StorageKey); err != nil {
		log.Warnw("[CatalogService] 回收存储文件失败 (StorageReclamationFailure)", "id", asset.ID, "key", asset.StorageKey, "error", err)
	}
	publishEvent(ctx, s.publisher, tasks.AssetDeleted, asset.ID)
	log.Infof("[CatalogService] 资产已删除, id: %s", id)
	return asset, nil
}

func (s *catalogService) Stats(ctx context.Context) (*CatalogStats, error) {
	overall, err := s.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	byFormat, err := s.BreakdownByFormat(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.TopByField(ctx, "createdAt", statsTopN)
	if err != nil {
		return nil, err
	}
	popular, err := s.TopByField(ctx, "views", statsTopN)
	if err != nil {
		return nil, err
	}
	return &CatalogStats{Overall: overall, ByFormat: byFormat, Recent: recent, Popular: popular}, nil
}

// Aggregate 在整个索引上计算汇总，平均大小保留两位小数。
func (s *catalogService) Aggregate(ctx context.Context) (model.CatalogSummary, error) {
	summary, err := s.assets.Aggregate(ctx)
	if err != nil {
		log.Errorf("[CatalogService] 计算统计失败: %v", err)
		return model.CatalogSummary{}, persistenceFailure("Failed to compute statistics", err)
	}
	summary.AverageBytes = round2(summary.AverageBytes)
	return summary, nil
}

func (s *catalogService) BreakdownByFormat(ctx context.Context) ([]model.FormatBreakdown, error) {
	rows, err := s.assets.BreakdownByFormat(ctx)
	if err != nil {
		log.Errorf("[CatalogService] 按格式统计失败: %v", err)
		return nil, persistenceFailure("Failed to compute statistics", err)
	}
	for i := range rows {
		rows[i].AverageViews = round2(rows[i].AverageViews)
	}
	if rows == nil {
		rows = []model.FormatBreakdown{}
	}
	return rows, nil
}

// TopByField 返回公开资产中按字段降序的前 n 条。
func (s *catalogService) TopByField(ctx context.Context, field string, n int) ([]model.AssetSummary, error) {
	if _, ok := repository.SortColumns[field]; !ok {
		return nil, validationError("Validation failed", FieldError{Field: "field", Message: "unsupported ranking field"})
	}
	assets, err := s.assets.TopBy(ctx, field, n, true)
	if err != nil {
		return nil, persistenceFailure("Failed to compute ranking", err)
	}
	return summaries(assets), nil
}

func summaries(assets []model.Asset) []model.AssetSummary {
	out := make([]model.AssetSummary, 0, len(assets))
	for i := range assets {
		out = append(out, assets[i].Summary())
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// mapRepoError 将仓储层错误转换为业务错误。
func mapRepoError(err error, notFoundMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(notFoundMsg)
	}
	if errors.Is(err, repository.ErrInvalidField) || errors.Is(err, repository.ErrNegativeDelta) {
		return validationError(err.Error())
	}
	return persistenceFailure("Database operation failed", err)
}
