// Package redis 机构最近测算结果的 Redis 读模型
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	"github.com/wyfcoding/solarhealth/pkg/cache"
)

type evaluationReadRepository struct {
	store  cache.Cache
	prefix string
	ttl    time.Duration
}

// NewEvaluationReadRepository 创建读模型仓储
func NewEvaluationReadRepository(store cache.Cache, ttl time.Duration) domain.EvaluationReadRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &evaluationReadRepository{store: store, prefix: "solarhealth:facility:evaluation:", ttl: ttl}
}

func (r *evaluationReadRepository) Save(ctx context.Context, s *domain.EvaluationSnapshot) error {
	if s == nil {
		return nil
	}
	return cache.SetJSON(ctx, r.store, r.key(s.FacilityID), s, r.ttl)
}

func (r *evaluationReadRepository) Get(ctx context.Context, facilityID uint) (*domain.EvaluationSnapshot, error) {
	var snap domain.EvaluationSnapshot
	ok, err := cache.GetJSON(ctx, r.store, r.key(facilityID), &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

func (r *evaluationReadRepository) key(id uint) string {
	return r.prefix + strconv.FormatUint(uint64(id), 10)
}
