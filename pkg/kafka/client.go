// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"model-viewer-go/internal/config"
	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是单个事件允许的最大处理次数，超过后提交 offset 放弃重试。
const maxAttempts = 3

// retryBackoff 是第一次重试前的等待时间，之后按次数线性增长。
var retryBackoff = 500 * time.Millisecond

// EventProcessor defines the interface for any service that can process an asset event.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type EventProcessor interface {
	Process(ctx context.Context, event tasks.AssetEvent) error
}

// Producer 将资产事件写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokerList(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 发送一个资产事件，同一资产的事件使用资产 ID 作为 key 以保证分区内有序。
func (p *Producer) Publish(ctx context.Context, event tasks.AssetEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AssetID),
		Value: body,
	})
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理资产事件，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokerList(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var event tasks.AssetEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		// FetchMessage 不会在同一会话内重新投递未提交的消息，因此重试在这里完成
		if err := processWithRetry(ctx, processor, event, rdb); err != nil {
			if ctx.Err() != nil {
				// 停机中断：不提交，重启后从该消息继续
				break
			}
			log.Errorf("资产事件多次失败(>=%d)，提交 offset 终止重试: type=%s, asset=%s, Error: %v", maxAttempts, event.Type, event.AssetID, err)
		} else {
			log.Infof("资产事件处理成功: type=%s, asset=%s", event.Type, event.AssetID)
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func attemptsKey(assetID string) string {
	return fmt.Sprintf("kafka:attempts:%s", assetID)
}

// processWithRetry 处理一个事件，失败时等待后重试，累计失败达到 maxAttempts 时返回最后一次的错误。
// 失败次数记录在 Redis 中，进程重启后重新投递的消息不会重新获得完整的重试次数。
func processWithRetry(ctx context.Context, processor EventProcessor, event tasks.AssetEvent, rdb *redis.Client) error {
	for attempt := 1; ; attempt++ {
		err := processor.Process(ctx, event)
		if err == nil {
			clearFailures(ctx, rdb, event.AssetID)
			return nil
		}
		log.Warnf("处理资产事件失败: type=%s, asset=%s, attempt=%d, Error: %v", event.Type, event.AssetID, attempt, err)

		failures, incErr := recordFailure(ctx, rdb, event.AssetID, attempt)
		if incErr != nil {
			log.Warnf("记录失败次数失败，使用本地计数: %v", incErr)
			failures = int64(attempt)
		}
		if failures >= maxAttempts {
			// 放弃后 offset 会被提交，计数随之清理，不影响该资产后续的事件
			clearFailures(ctx, rdb, event.AssetID)
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
}

// recordFailure 使用 Redis 累计失败次数并返回累计值。
// 未配置 Redis 时返回本地计数 local。
func recordFailure(ctx context.Context, rdb *redis.Client, assetID string, local int) (int64, error) {
	if rdb == nil {
		return int64(local), nil
	}
	key := attemptsKey(assetID)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts, nil
}

// clearFailures 清理失败计数
func clearFailures(ctx context.Context, rdb *redis.Client, assetID string) {
	if rdb == nil {
		return
	}
	_ = rdb.Del(ctx, attemptsKey(assetID)).Err()
}

func brokerList(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
