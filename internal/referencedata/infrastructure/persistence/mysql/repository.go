// Package mysql 参考数据的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/referencedata/domain"
	"github.com/wyfcoding/solarhealth/pkg/db"
	"gorm.io/gorm"
)

// DepartmentModel 省/州表
type DepartmentModel struct {
	ID   uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:varchar(50);not null;comment:名称"`
}

// TableName 指定表名
func (DepartmentModel) TableName() string { return "departments" }

// ToDomain 转换为领域实体
func (m *DepartmentModel) ToDomain() *domain.Department {
	return &domain.Department{ID: m.ID, Name: m.Name}
}

// CityModel 城市表
type CityModel struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string `gorm:"column:name;type:varchar(50);not null;comment:名称"`
	DepartmentID uint   `gorm:"column:department_id;not null;index;comment:所属省/州"`
}

// TableName 指定表名
func (CityModel) TableName() string { return "cities" }

// ToDomain 转换为领域实体
func (m *CityModel) ToDomain() *domain.City {
	return &domain.City{ID: m.ID, Name: m.Name, DepartmentID: m.DepartmentID}
}

// IrradianceModel 城市月度辐照度表，(city_id, month) 唯一
type IrradianceModel struct {
	ID     uint   `gorm:"column:id;primaryKey;autoIncrement"`
	CityID uint   `gorm:"column:city_id;not null;uniqueIndex:uk_city_month;comment:城市"`
	Month  int    `gorm:"column:month;not null;uniqueIndex:uk_city_month;comment:月份 1-12"`
	KWhM2  string `gorm:"column:kwh_m2_month;type:decimal(6,2);not null;comment:辐照度 kWh/m²/月"`
}

// TableName 指定表名
func (IrradianceModel) TableName() string { return "irradiance" }

// ToDomain 转换为领域实体
func (m *IrradianceModel) ToDomain() (*domain.Irradiance, error) {
	v, err := decimal.NewFromString(m.KWhM2)
	if err != nil {
		return nil, fmt.Errorf("invalid irradiance value %q: %w", m.KWhM2, err)
	}
	return &domain.Irradiance{ID: m.ID, CityID: m.CityID, Month: m.Month, KWhM2: v}, nil
}

// Models 需要自动迁移的模型
func Models() []any {
	return []any{&DepartmentModel{}, &CityModel{}, &IrradianceModel{}}
}

// DepartmentRepository 省/州仓储实现
type DepartmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository 创建仓储
func NewDepartmentRepository(db *gorm.DB) domain.DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) List(ctx context.Context) ([]*domain.Department, error) {
	var models []DepartmentModel
	if err := r.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Department, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out, nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id uint) (*domain.Department, error) {
	var model DepartmentModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CityRepository 城市仓储实现
type CityRepository struct {
	db *gorm.DB
}

// NewCityRepository 创建仓储
func NewCityRepository(db *gorm.DB) domain.CityRepository {
	return &CityRepository{db: db}
}

func (r *CityRepository) List(ctx context.Context, departmentID uint, limit, offset int) ([]*domain.City, int64, error) {
	query := r.db.WithContext(ctx).Model(&CityModel{})
	if departmentID != 0 {
		query = query.Where("department_id = ?", departmentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []CityModel
	if err := query.Order("name").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*domain.City, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out, total, nil
}

func (r *CityRepository) GetByID(ctx context.Context, id uint) (*domain.City, error) {
	var model CityModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// IrradianceRepository 辐照度仓储实现
type IrradianceRepository struct {
	db *gorm.DB
}

// NewIrradianceRepository 创建仓储
func NewIrradianceRepository(db *gorm.DB) domain.IrradianceRepository {
	return &IrradianceRepository{db: db}
}

func (r *IrradianceRepository) Get(ctx context.Context, cityID uint, month int) (*domain.Irradiance, error) {
	var model IrradianceModel
	err := r.db.WithContext(ctx).Where("city_id = ? AND month = ?", cityID, month).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

func (r *IrradianceRepository) ListByCity(ctx context.Context, cityID uint) ([]*domain.Irradiance, error) {
	var models []IrradianceModel
	if err := r.db.WithContext(ctx).Where("city_id = ?", cityID).Order("month").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Irradiance, 0, len(models))
	for i := range models {
		irr, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, irr)
	}
	return out, nil
}

func (r *IrradianceRepository) Upsert(ctx context.Context, irr *domain.Irradiance) error {
	model := &IrradianceModel{CityID: irr.CityID, Month: irr.Month, KWhM2: irr.KWhM2.StringFixed(2)}
	if err := db.Upsert(r.db.WithContext(ctx), model, []string{"city_id", "month"}, []string{"kwh_m2_month"}); err != nil {
		return err
	}
	irr.ID = model.ID
	return nil
}
