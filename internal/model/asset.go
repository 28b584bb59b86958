// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 支持的模型格式。
const (
	FormatGLB  = "GLB"
	FormatGLTF = "GLTF"
)

// Asset 定义了 assets 表的 ORM 模型，每条记录对应一个已存储的 3D 模型文件。
// StorageKey、StoragePath、UploaderIP 属于内部字段，不会序列化给调用方。
type Asset struct {
	ID           string                       `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string                       `gorm:"type:varchar(100);not null" json:"name"`
	OriginalName string                       `gorm:"type:varchar(255);not null;index" json:"originalName"`
	StorageKey   string                       `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	StoragePath  string                       `gorm:"type:varchar(512);not null" json:"-"`
	URL          string                       `gorm:"type:varchar(512);not null" json:"url"`
	ThumbnailURL string                       `gorm:"type:varchar(512);not null" json:"thumbnail"`
	Format       string                       `gorm:"type:varchar(8);not null;index" json:"format"`
	Size         int64                        `gorm:"not null" json:"size"`
	UploaderIP   string                       `gorm:"type:varchar(64)" json:"-"`
	Metadata     datatypes.JSONMap            `gorm:"type:text" json:"metadata"`
	IsPublic     bool                         `gorm:"not null;index" json:"isPublic"`
	Views        int64                        `gorm:"not null;default:0;index" json:"views"`
	Downloads    int64                        `gorm:"not null;default:0" json:"downloads"`
	UploadCount  int64                        `gorm:"not null;default:0" json:"uploadCount"`
	Tags         datatypes.JSONType[[]string] `gorm:"type:text" json:"tags"`
	TagsText     string                       `gorm:"column:tags_text;type:varchar(1024);not null;default:''" json:"-"`
	CreatedAt    time.Time                    `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt    time.Time                    `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Asset) TableName() string {
	return "assets"
}

// TagList 返回标签切片，从不返回 nil。
func (a *Asset) TagList() []string {
	tags := a.Tags.Data()
	if tags == nil {
		return []string{}
	}
	return tags
}

// BeforeSave 在写入前同步 tags_text。
func (a *Asset) BeforeSave(*gorm.DB) error {
	a.TagsText = JoinTags(a.TagList())
	return nil
}

// TagDelimiter 分隔 tags_text 中的标签。
const TagDelimiter = "|"

// TagTerm 返回标签在 tags_text 中的形式：小写，分隔符替换为空格。
func TagTerm(tag string) string {
	return strings.ReplaceAll(strings.ToLower(tag), TagDelimiter, " ")
}

// JoinTags 生成用于匹配的标签文本，例如 |r&d|lab|chair|，没有标签时为空串。
// JSON 列会转义 & < > 等字符，标签的过滤与搜索只使用这一列。
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	terms := make([]string, len(tags))
	for i, t := range tags {
		terms[i] = TagTerm(t)
	}
	return TagDelimiter + strings.Join(terms, TagDelimiter) + TagDelimiter
}

// AssetSummary 是列表接口返回的精简视图。
type AssetSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail"`
	Format       string    `json:"format"`
	Size         int64     `json:"size"`
	SizeText     string    `json:"formattedSize"`
	Views        int64     `json:"views"`
	Downloads    int64     `json:"downloads"`
	Tags         []string  `json:"tags"`
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary 投影出对外可见的字段。
func (a *Asset) Summary() AssetSummary {
	return AssetSummary{
		ID:           a.ID,
		Name:         a.Name,
		URL:          a.URL,
		ThumbnailURL: a.ThumbnailURL,
		Format:       a.Format,
		Size:         a.Size,
		SizeText:     FormatSize(a.Size),
		Views:        a.Views,
		Downloads:    a.Downloads,
		Tags:         a.TagList(),
		IsPublic:     a.IsPublic,
		CreatedAt:    a.CreatedAt,
	}
}

// CatalogSummary 是对整个索引的聚合统计。
type CatalogSummary struct {
	AssetCount     int64   `json:"totalModels"`
	TotalBytes     int64   `json:"totalSize"`
	AverageBytes   float64 `json:"averageSize"`
	TotalViews     int64   `json:"totalViews"`
	TotalDownloads int64   `json:"totalDownloads"`
}

// FormatBreakdown 是单个格式的统计。
type FormatBreakdown struct {
	Format       string  `json:"format"`
	Count        int64   `json:"count"`
	TotalBytes   int64   `json:"totalSize"`
	AverageViews float64 `json:"avgViews"`
}

// AssetSearchDocument 定义了存储在 Elasticsearch 中的资产文档结构。
type AssetSearchDocument struct {
	AssetID   string    `json:"asset_id"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags"`
	Format    string    `json:"format"`
	IsPublic  bool      `json:"is_public"`
	Size      int64     `json:"size"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchDocument 将资产转换为索引文档。
func (a *Asset) SearchDocument() AssetSearchDocument {
	return AssetSearchDocument{
		AssetID:   a.ID,
		Name:      a.Name,
		Tags:      a.TagList(),
		Format:    a.Format,
		IsPublic:  a.IsPublic,
		Size:      a.Size,
		Views:     a.Views,
		CreatedAt: a.CreatedAt,
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize 将字节数格式化为 "1.5 MB" 这样的可读形式，保留两位小数。
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
