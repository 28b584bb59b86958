package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"model-viewer-go/internal/model"
	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/es"
	"model-viewer-go/pkg/log"
)

// SearchService 接口定义了资产全文检索操作。
type SearchService interface {
	Search(ctx context.Context, query string, page, limit int) (*AssetPage, error)
}

type searchService struct {
	indexer es.Indexer
	assets  repository.AssetRepository
	catalog CatalogService
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(indexer es.Indexer, assets repository.AssetRepository, catalog CatalogService) SearchService {
	return &searchService{indexer: indexer, assets: assets, catalog: catalog}
}

// Search 先查询 Elasticsearch，再回表加载记录并保持相关度顺序。
// 索引不可用时回退到数据库的子串匹配。
func (s *searchService) Search(ctx context.Context, query string, page, limit int) (*AssetPage, error) {
	query = normalizeQuery(query)
	if n := utf8.RuneCountInString(query); n < 1 || n > maxSearchLength {
		return nil, validationError("Validation failed", FieldError{Field: "q", Message: "Search query must be between 1 and 50 characters"})
	}
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	limit = repository.ClampLimit(limit)

	log.Infof("[SearchService] 开始搜索, query: '%s', page: %d, limit: %d", query, page, limit)
	ids, total, err := s.indexer.SearchAssets(ctx, query, (page-1)*limit, limit)
	if err != nil {
		log.Warnf("[SearchService] Elasticsearch 搜索不可用，回退到数据库查询: %v", err)
		return s.catalog.List(ctx, ListParams{Page: page, Limit: limit, Search: query})
	}

	found, err := s.assets.FindByIDs(ctx, ids)
	if err != nil {
		return nil, persistenceFailure("Failed to load search results", err)
	}
	byID := make(map[string]*model.Asset, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	results := make([]model.AssetSummary, 0, len(ids))
	for _, id := range ids {
		// 索引可能滞后于数据库：已删除或已转为私有的资产直接跳过
		if a, ok := byID[id]; ok && a.IsPublic {
			results = append(results, a.Summary())
		}
	}

	summary, err := s.catalog.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] 搜索完成, 命中 %d, 返回 %d", total, len(results))
	return &AssetPage{
		Assets:     results,
		Pagination: NewPagination(page, limit, total),
		Summary:    summary,
	}, nil
}

// normalizeQuery 去掉首尾空白并合并连续空白。
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
