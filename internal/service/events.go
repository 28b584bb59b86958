package service

import (
	"context"

	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/tasks"
)

// EventPublisher 发布资产生命周期事件，kafka.Producer 与进程内的同步发布器都实现了它。
type EventPublisher interface {
	Publish(ctx context.Context, event tasks.AssetEvent) error
}

// publishEvent 尽力发布事件，失败只记录日志，不影响主流程。
func publishEvent(ctx context.Context, pub EventPublisher, eventType, assetID string) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, tasks.NewAssetEvent(eventType, assetID)); err != nil {
		log.Warnf("[Events] 发布资产事件失败: type=%s, asset=%s, err=%v", eventType, assetID, err)
	}
}
