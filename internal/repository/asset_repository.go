// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"strings"

	"model-viewer-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound 表示记录不存在，与 gorm.ErrRecordNotFound 等价。
var ErrNotFound = gorm.ErrRecordNotFound

var (
	// ErrInvalidField 表示计数字段或排序字段不在允许的范围内。
	ErrInvalidField = errors.New("repository: invalid field")
	// ErrNegativeDelta 表示计数只能单调递增。
	ErrNegativeDelta = errors.New("repository: counter delta must not be negative")
)

// 可递增的计数字段。
const (
	CounterViews     = "views"
	CounterDownloads = "downloads"
	CounterUploads   = "upload_count"
)

var counterColumns = map[string]bool{
	CounterViews:     true,
	CounterDownloads: true,
	CounterUploads:   true,
}

// SortColumns 将对外的排序键映射到数据库列。
var SortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"views":     "views",
	"size":      "size",
	"downloads": "downloads",
}

// ParseSort 解析 "views" / "-views" 形式的排序键。
func ParseSort(sort string) (column string, desc bool, ok bool) {
	if strings.HasPrefix(sort, "-") {
		desc = true
		sort = sort[1:]
	}
	column, ok = SortColumns[sort]
	return column, desc, ok
}

// 分页大小的上下限。
const (
	MinLimit = 1
	MaxLimit = 100
)

// ClampLimit 将分页大小限制在 [MinLimit, MaxLimit]。
func ClampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// AssetQuery 描述一次资产查询：过滤、排序与分页。
type AssetQuery struct {
	// IncludePrivate 为 false 时只返回公开资产。
	IncludePrivate bool
	Format         string
	Tag            string
	Search         string
	SortColumn     string
	SortDesc       bool
	Offset         int
	Limit          int
}

// AssetUpdate 是资产的部分更新，nil 字段保持不变。
type AssetUpdate struct {
	Name     *string
	Tags     *[]string
	IsPublic *bool
}

// AssetRepository 接口定义了资产索引的持久化操作。
type AssetRepository interface {
	Create(ctx context.Context, asset *model.Asset) error
	Get(ctx context.Context, id string) (*model.Asset, error)
	Exists(ctx context.Context, id string) (bool, error)
	IncrementField(ctx context.Context, id, field string, delta int64) (*model.Asset, error)
	Update(ctx context.Context, id string, update AssetUpdate) (*model.Asset, error)
	Delete(ctx context.Context, id string) (*model.Asset, error)
	Query(ctx context.Context, q AssetQuery) ([]model.Asset, int64, error)
	Aggregate(ctx context.Context) (model.CatalogSummary, error)
	BreakdownByFormat(ctx context.Context) ([]model.FormatBreakdown, error)
	TopBy(ctx context.Context, sortKey string, n int, publicOnly bool) ([]model.Asset, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Asset, error)
	ExistsByOriginalName(ctx context.Context, name string) (bool, error)
}

// assetRepository 是 AssetRepository 接口的 GORM 实现。
type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository 创建一个新的 AssetRepository 实例。
func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

// Create 在数据库中创建一条资产记录，未指定 ID 时自动生成。
func (r *assetRepository) Create(ctx context.Context, asset *model.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(asset).Error
}

// Get 根据 ID 检索资产记录。
func (r *assetRepository) Get(ctx context.Context, id string) (*model.Asset, error) {
	var asset model.Asset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// IncrementField 原子地递增计数字段并返回递增后的记录。
// 递增在单条 UPDATE 语句中完成，同一记录上的并发递增不会丢失；记录不存在时返回 ErrNotFound 且不会创建记录。
func (r *assetRepository) IncrementField(ctx context.Context, id, field string, delta int64) (*model.Asset, error) {
	if !counterColumns[field] {
		return nil, ErrInvalidField
	}
	if delta < 0 {
		return nil, ErrNegativeDelta
	}

	var asset model.Asset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Asset{}).
			Where("id = ?", id).
			UpdateColumn(field, gorm.Expr(field+" + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).First(&asset).Error
	})
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// Update 对资产执行部分更新。
func (r *assetRepository) Update(ctx context.Context, id string, update AssetUpdate) (*model.Asset, error) {
	var asset model.Asset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&asset).Error; err != nil {
			return err
		}
		changes := map[string]interface{}{}
		if update.Name != nil {
			changes["name"] = *update.Name
		}
		if update.Tags != nil {
			changes["tags"] = datatypes.NewJSONType(*update.Tags)
			changes["tags_text"] = model.JoinTags(*update.Tags)
		}
		if update.IsPublic != nil {
			changes["is_public"] = *update.IsPublic
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&asset).Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&asset).Error
	})
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// Delete 删除资产记录并返回被删除的记录。
func (r *assetRepository) Delete(ctx context.Context, id string) (*model.Asset, error) {
	var asset model.Asset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&asset).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Asset{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '!' 使用（反斜杠在 MySQL 字面量中有特殊含义）。
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func (r *assetRepository) filtered(ctx context.Context, q AssetQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&model.Asset{})
	if !q.IncludePrivate {
		tx = tx.Where("is_public = ?", true)
	}
	if q.Format != "" {
		tx = tx.Where("format = ?", strings.ToUpper(q.Format))
	}
	if q.Tag != "" {
		tag := model.TagDelimiter + likeEscaper.Replace(model.TagTerm(q.Tag)) + model.TagDelimiter
		tx = tx.Where("tags_text LIKE ? ESCAPE '!'", "%"+tag+"%")
	}
	if q.Search != "" {
		pattern := containsPattern(q.Search)
		if strings.Contains(q.Search, model.TagDelimiter) {
			// 含分隔符的搜索词不可能落在单个标签内
			tx = tx.Where("LOWER(name) LIKE ? ESCAPE '!'", pattern)
		} else {
			tx = tx.Where("(LOWER(name) LIKE ? ESCAPE '!' OR tags_text LIKE ? ESCAPE '!')", pattern, pattern)
		}
	}
	return tx
}

// Query 按条件过滤、排序、分页查询资产。返回的总数只受过滤条件影响，与分页无关。
func (r *assetRepository) Query(ctx context.Context, q AssetQuery) ([]model.Asset, int64, error) {
	var total int64
	if err := r.filtered(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column := q.SortColumn
	if column == "" {
		column, q.SortDesc = "created_at", true
	}
	if !isSortColumn(column) {
		return nil, 0, ErrInvalidField
	}
	direction := " ASC"
	if q.SortDesc {
		direction = " DESC"
	}

	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var assets []model.Asset
	err := r.filtered(ctx, q).
		Order(column + direction).
		Order("id ASC").
		Offset(offset).
		Limit(ClampLimit(q.Limit)).
		Find(&assets).Error
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

func isSortColumn(column string) bool {
	for _, c := range SortColumns {
		if c == column {
			return true
		}
	}
	return false
}

type aggregateRow struct {
	AssetCount     int64
	TotalBytes     int64
	AverageBytes   float64
	TotalViews     int64
	TotalDownloads int64
}

// Aggregate 在整个（未过滤的）索引上计算汇总统计。
func (r *assetRepository) Aggregate(ctx context.Context) (model.CatalogSummary, error) {
	var row aggregateRow
	err := r.db.WithContext(ctx).Model(&model.Asset{}).
		Select("COUNT(*) AS asset_count, " +
			"COALESCE(SUM(size), 0) AS total_bytes, " +
			"COALESCE(AVG(size), 0) AS average_bytes, " +
			"COALESCE(SUM(views), 0) AS total_views, " +
			"COALESCE(SUM(downloads), 0) AS total_downloads").
		Scan(&row).Error
	if err != nil {
		return model.CatalogSummary{}, err
	}
	return model.CatalogSummary{
		AssetCount:     row.AssetCount,
		TotalBytes:     row.TotalBytes,
		AverageBytes:   row.AverageBytes,
		TotalViews:     row.TotalViews,
		TotalDownloads: row.TotalDownloads,
	}, nil
}

// BreakdownByFormat 按格式分组统计。
func (r *assetRepository) BreakdownByFormat(ctx context.Context) ([]model.FormatBreakdown, error) {
	var rows []model.FormatBreakdown
	err := r.db.WithContext(ctx).Model(&model.Asset{}).
		Select("format, COUNT(*) AS count, COALESCE(SUM(size), 0) AS total_bytes, COALESCE(AVG(views), 0) AS average_views").
		Group("format").
		Order("count DESC").
		Order("format ASC").
		Scan(&rows).Error
	return rows, err
}

// TopBy 返回按指定字段降序排列的前 n 条记录，相同值时较新的记录在前。
func (r *assetRepository) TopBy(ctx context.Context, sortKey string, n int, publicOnly bool) ([]model.Asset, error) {
	column, ok := SortColumns[strings.TrimPrefix(sortKey, "-")]
	if !ok {
		return nil, ErrInvalidField
	}
	tx := r.db.WithContext(ctx).Model(&model.Asset{})
	if publicOnly {
		tx = tx.Where("is_public = ?", true)
	}
	var assets []model.Asset
	err := tx.Order(column + " DESC").
		Order("created_at DESC").
		Order("id DESC").
		Limit(ClampLimit(n)).
		Find(&assets).Error
	return assets, err
}

// FindByIDs 批量查询资产，返回顺序不保证与 ids 一致。
func (r *assetRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Asset, error) {
	var assets []model.Asset
	if len(ids) == 0 {
		return assets, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&assets).Error
	return assets, err
}

// ExistsByOriginalName 用于启动时的种子导入去重。
func (r *assetRepository) ExistsByOriginalName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Asset{}).Where("original_name = ?", name).Count(&count).Error
	return count > 0, err
}
