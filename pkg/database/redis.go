package database

import (
	"context"
	"time"

	"model-viewer-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

var RDB *redis.Client

// OpenRedis 创建 Redis 客户端并测试连接。
func OpenRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// InitRedis 初始化全局 Redis 客户端。Redis 是可选依赖，连接失败时 RDB 保持为 nil。
func InitRedis(addr, password string, db int) {
	if addr == "" {
		log.Info("Redis 未配置，跳过初始化")
		return
	}
	client, err := OpenRedis(addr, password, db)
	if err != nil {
		log.Warnf("Redis 连接失败，分布式锁与重试计数将被禁用: %v", err)
		return
	}
	RDB = client
	log.Info("Redis client connected successfully")
}
