// Package cache 提供 Redis 与进程内 bigcache 两级缓存，值按 JSON 序列化
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("cache miss")

// Cache 字节级缓存接口
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GetJSON 读取并反序列化，未命中返回 (false, nil)
func GetJSON(ctx context.Context, c Cache, key string, dest any) (bool, error) {
	data, err := c.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 序列化后写入
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
