// Package cache Redis 结果缓存，值用 JSON 序列化
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sugawarayuuta/sonnet"
)

// Options Redis 连接与过期配置
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL 每个 key 的过期时间，0 表示不过期
	TTL time.Duration
}

// RedisCache 缓存确定性的计算结果（资源估算、期限结构）
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建缓存，不主动连接；连接可用性用 Ping 检查
func NewRedisCache(opts Options) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisCache{client: rdb, ttl: opts.TTL}
}

// Ping 检查连接
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Get 读取 key 并反序列化到 dst。key 不存在时返回 (false, nil)。
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := sonnet.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// Set 序列化 v 并写入，使用配置的 TTL
func (c *RedisCache) Set(ctx context.Context, key string, v any) error {
	data, err := sonnet.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete 删除 key
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close 关闭连接池
func (c *RedisCache) Close() error {
	return c.client.Close()
}
