package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// LocalCache 进程内缓存，统一 TTL 由 bigcache 负责淘汰，单次 Set 的 ttl 参数被忽略
type LocalCache struct {
	bc *bigcache.BigCache
}

// NewLocal 创建进程内缓存
func NewLocal(ctx context.Context, ttl time.Duration) (*LocalCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Verbose = false
	bc, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}
	return &LocalCache{bc: bc}, nil
}

func (l *LocalCache) Get(_ context.Context, key string) ([]byte, error) {
	data, err := l.bc.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrMiss
	}
	return data, err
}

func (l *LocalCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return l.bc.Set(key, value)
}

func (l *LocalCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := l.bc.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Close 停止后台清理
func (l *LocalCache) Close() error {
	return l.bc.Close()
}

// Tiered L1 进程内 + L2 Redis. L2 命中时回填 L1，L2 故障降级为未命中
type Tiered struct {
	l1 Cache
	l2 Cache
}

// NewTiered 组合两级缓存
func NewTiered(l1, l2 Cache) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := t.l1.Get(ctx, key); err == nil {
		return data, nil
	}
	data, err := t.l2.Get(ctx, key)
	if err != nil {
		return nil, ErrMiss
	}
	_ = t.l1.Set(ctx, key, data, 0)
	return data, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, keys ...string) error {
	if err := t.l1.Delete(ctx, keys...); err != nil {
		return err
	}
	return t.l2.Delete(ctx, keys...)
}
