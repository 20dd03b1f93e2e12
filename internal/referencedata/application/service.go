// Package application 参考数据用例：行政区划查询与带缓存的辐照度查询
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/referencedata/domain"
	"github.com/wyfcoding/solarhealth/pkg/metrics"
	"github.com/wyfcoding/solarhealth/pkg/utils"
)

// ErrNegativeIrradiance 辐照度不能为负
var ErrNegativeIrradiance = errors.New("irradiance must not be negative")

// ReferenceDataService 参考数据应用服务
type ReferenceDataService struct {
	departmentRepo domain.DepartmentRepository
	cityRepo       domain.CityRepository
	irradianceRepo domain.IrradianceRepository
	cache          domain.IrradianceCache
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewReferenceDataService 创建服务，cache 与 m 可以为 nil
func NewReferenceDataService(
	departmentRepo domain.DepartmentRepository,
	cityRepo domain.CityRepository,
	irradianceRepo domain.IrradianceRepository,
	cache domain.IrradianceCache,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ReferenceDataService {
	return &ReferenceDataService{
		departmentRepo: departmentRepo,
		cityRepo:       cityRepo,
		irradianceRepo: irradianceRepo,
		cache:          cache,
		metrics:        m,
		logger:         logger.With("service", "reference_data"),
	}
}

// ListDepartments 列出全部省/州
func (s *ReferenceDataService) ListDepartments(ctx context.Context) ([]*domain.Department, error) {
	deps, err := s.departmentRepo.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list departments", "error", err)
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return deps, nil
}

// GetDepartment 不存在时返回 (nil, nil)
func (s *ReferenceDataService) GetDepartment(ctx context.Context, id uint) (*domain.Department, error) {
	dep, err := s.departmentRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get department", "department_id", id, "error", err)
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return dep, nil
}

// ListCities 分页列出城市，departmentID 为 0 时不过滤
func (s *ReferenceDataService) ListCities(ctx context.Context, departmentID uint, page *utils.Pagination) ([]*domain.City, error) {
	cities, total, err := s.cityRepo.List(ctx, departmentID, page.Limit(), page.Offset())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list cities", "department_id", departmentID, "error", err)
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	page.SetTotal(total)
	return cities, nil
}

// GetCity 不存在时返回 (nil, nil)
func (s *ReferenceDataService) GetCity(ctx context.Context, id uint) (*domain.City, error) {
	city, err := s.cityRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get city", "city_id", id, "error", err)
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	return city, nil
}

// ListIrradiance 城市全年辐照度
func (s *ReferenceDataService) ListIrradiance(ctx context.Context, cityID uint) ([]*domain.Irradiance, error) {
	items, err := s.irradianceRepo.ListByCity(ctx, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list irradiance: %w", err)
	}
	return items, nil
}

// Irradiance 查询城市某月辐照度，found=false 表示没有实测值，由调用方决定默认值.
// 先查缓存（包括"不存在"的结果），缓存故障时直接查库。
func (s *ReferenceDataService) Irradiance(ctx context.Context, cityID uint, month int) (decimal.Decimal, bool, error) {
	if s.cache != nil {
		lookup, err := s.cache.Get(ctx, cityID, month)
		if err != nil {
			s.logger.WarnContext(ctx, "irradiance cache read failed", "city_id", cityID, "month", month, "error", err)
		}
		if lookup != nil {
			s.countCache("hit")
			return lookup.Value, lookup.Found, nil
		}
		s.countCache("miss")
	}

	irr, err := s.irradianceRepo.Get(ctx, cityID, month)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get irradiance", "city_id", cityID, "month", month, "error", err)
		return decimal.Zero, false, fmt.Errorf("failed to get irradiance: %w", err)
	}

	lookup := domain.IrradianceLookup{}
	if irr != nil {
		lookup = domain.IrradianceLookup{Found: true, Value: irr.KWhM2}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cityID, month, lookup); err != nil {
			s.logger.WarnContext(ctx, "irradiance cache write failed", "city_id", cityID, "month", month, "error", err)
		}
	}
	return lookup.Value, lookup.Found, nil
}

// SetIrradiance 写入或更新辐照度并使缓存失效
func (s *ReferenceDataService) SetIrradiance(ctx context.Context, cityID uint, month int, value decimal.Decimal) (*domain.Irradiance, error) {
	if value.IsNegative() {
		return nil, ErrNegativeIrradiance
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidMonth, month)
	}

	irr := &domain.Irradiance{CityID: cityID, Month: month, KWhM2: value.Round(2)}
	if err := s.irradianceRepo.Upsert(ctx, irr); err != nil {
		s.logger.ErrorContext(ctx, "failed to upsert irradiance", "city_id", cityID, "month", month, "error", err)
		return nil, fmt.Errorf("failed to save irradiance: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cityID, month); err != nil {
			s.logger.WarnContext(ctx, "irradiance cache invalidation failed", "city_id", cityID, "month", month, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "irradiance updated", "city_id", cityID, "month", month, "kwh_m2", irr.KWhM2.String())
	return irr, nil
}

func (s *ReferenceDataService) countCache(outcome string) {
	if s.metrics != nil {
		s.metrics.CacheLookupsTotal.WithLabelValues("irradiance", outcome).Inc()
	}
}
