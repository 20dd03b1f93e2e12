// Package redis 辐照度查询缓存，底层为进程内 + Redis 两级缓存
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/solarhealth/internal/referencedata/domain"
	"github.com/wyfcoding/solarhealth/pkg/cache"
)

const irradianceKeyPrefix = "solarhealth:irradiance:"

// IrradianceCache 实现 domain.IrradianceCache
type IrradianceCache struct {
	store cache.Cache
	ttl   time.Duration
}

// NewIrradianceCache 创建缓存
func NewIrradianceCache(store cache.Cache, ttl time.Duration) *IrradianceCache {
	return &IrradianceCache{store: store, ttl: ttl}
}

// Key 缓存键
func Key(cityID uint, month int) string {
	return fmt.Sprintf("%s%d:%02d", irradianceKeyPrefix, cityID, month)
}

func (c *IrradianceCache) Get(ctx context.Context, cityID uint, month int) (*domain.IrradianceLookup, error) {
	var lookup domain.IrradianceLookup
	ok, err := cache.GetJSON(ctx, c.store, Key(cityID, month), &lookup)
	if err != nil || !ok {
		return nil, err
	}
	return &lookup, nil
}

func (c *IrradianceCache) Set(ctx context.Context, cityID uint, month int, lookup domain.IrradianceLookup) error {
	return cache.SetJSON(ctx, c.store, Key(cityID, month), lookup, c.ttl)
}

func (c *IrradianceCache) Delete(ctx context.Context, cityID uint, month int) error {
	return c.store.Delete(ctx, Key(cityID, month))
}
