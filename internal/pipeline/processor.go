// Package pipeline 定义了资产事件的处理流程：根据事件同步 Elasticsearch 中的检索文档。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"model-viewer-go/internal/repository"
	"model-viewer-go/pkg/es"
	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/tasks"

	"gorm.io/gorm"
)

// Processor 封装了事件处理的所有依赖和逻辑。
type Processor struct {
	assets  repository.AssetRepository
	indexer es.Indexer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(assets repository.AssetRepository, indexer es.Indexer) *Processor {
	return &Processor{assets: assets, indexer: indexer}
}

// Process 是事件处理的主函数，对同一事件重复处理是安全的。
func (p *Processor) Process(ctx context.Context, event tasks.AssetEvent) error {
	log.Infof("[Processor] 开始处理事件, type: %s, assetID: %s", event.Type, event.AssetID)
	if event.AssetID == "" {
		return errors.New("事件缺少 asset_id")
	}

	switch event.Type {
	case tasks.AssetIngested, tasks.AssetUpdated:
		return p.reindex(ctx, event.AssetID)
	case tasks.AssetDeleted:
		return p.remove(ctx, event.AssetID)
	default:
		log.Warnf("[Processor] 未知的事件类型, 跳过: %s", event.Type)
		return nil
	}
}

// reindex 从数据库读取最新记录写入索引，记录已不存在时从索引中删除。
func (p *Processor) reindex(ctx context.Context, assetID string) error {
	asset, err := p.assets.Get(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("[Processor] 资产已不存在, 从索引中移除, assetID: %s", assetID)
			return p.remove(ctx, assetID)
		}
		return fmt.Errorf("读取资产记录失败: %w", err)
	}
	if err := p.indexer.IndexAsset(ctx, asset.SearchDocument()); err != nil {
		log.Errorf("[Processor] 写入索引失败, assetID: %s, err: %v", assetID, err)
		return fmt.Errorf("写入索引失败: %w", err)
	}
	log.Infof("[Processor] 索引已更新, assetID: %s", assetID)
	return nil
}

func (p *Processor) remove(ctx context.Context, assetID string) error {
	if err := p.indexer.DeleteAsset(ctx, assetID); err != nil {
		log.Errorf("[Processor] 删除索引文档失败, assetID: %s, err: %v", assetID, err)
		return fmt.Errorf("删除索引文档失败: %w", err)
	}
	return nil
}
