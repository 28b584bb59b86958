// Package lock 提供基于 Redis 的跨实例互斥锁。
package lock

import (
	"context"
	"errors"
	"time"

	"model-viewer-go/pkg/token"

	"github.com/go-redis/redis/v8"
)

// ErrNotAcquired 表示在等待时间内没有拿到锁。
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker 是一个可以按名称加锁的互斥原语。
type Locker interface {
	// Acquire 阻塞直到拿到锁、ctx 结束或超时，返回的函数用于释放锁。
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// 只有持有者才能删除锁，避免误删他人续上的锁。
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker 使用 SET NX PX 实现的简单分布式锁。
type RedisLocker struct {
	rdb      *redis.Client
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
}

// NewRedisLocker 创建 RedisLocker。ttl 是锁的自动过期时间，wait 是最长等待时间。
func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait, interval: 50 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := "lock:" + name
	owner := token.GenerateRandomString(16)
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, owner).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// NoopLocker 在单实例部署（未配置 Redis）时使用，不提供跨进程互斥。
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
