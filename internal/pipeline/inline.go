package pipeline

import (
	"context"

	"model-viewer-go/pkg/tasks"
)

// InlinePublisher 在未启用 Kafka 时直接在当前请求中处理事件。
type InlinePublisher struct {
	processor *Processor
}

func NewInlinePublisher(processor *Processor) *InlinePublisher {
	return &InlinePublisher{processor: processor}
}

func (p *InlinePublisher) Publish(ctx context.Context, event tasks.AssetEvent) error {
	return p.processor.Process(ctx, event)
}
