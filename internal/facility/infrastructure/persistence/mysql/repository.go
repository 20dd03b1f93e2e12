package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	"github.com/wyfcoding/solarhealth/pkg/db"
	"gorm.io/gorm"
)

type facilityRepository struct {
	db *gorm.DB
}

// NewFacilityRepository 创建机构仓储，写操作会加入 ctx 中的事务
func NewFacilityRepository(db *gorm.DB) domain.FacilityRepository {
	return &facilityRepository{db: db}
}

func (r *facilityRepository) List(ctx context.Context, limit, offset int) ([]*domain.Facility, int64, error) {
	var total int64
	if err := db.Conn(ctx, r.db).Model(&FacilityModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []FacilityModel
	if err := db.Conn(ctx, r.db).Order("id").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Facility, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, total, nil
}

func (r *facilityRepository) Get(ctx context.Context, id uint) (*domain.Facility, error) {
	var model FacilityModel
	if err := db.Conn(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *facilityRepository) Save(ctx context.Context, f *domain.Facility) error {
	model := toFacilityModel(f)
	if err := db.Conn(ctx, r.db).Save(model).Error; err != nil {
		return err
	}
	f.ID = model.ID
	f.CreatedAt = model.CreatedAt
	return nil
}

func (r *facilityRepository) SaveConsumption(ctx context.Context, c *domain.Consumption) error {
	model := &ConsumptionModel{
		FacilityID: c.FacilityID,
		Month:      c.Month,
		Year:       c.Year,
		KWh:        money(c.KWh),
		RecordedAt: c.RecordedAt,
	}
	if err := db.Conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	c.ID = model.ID
	return nil
}

func (r *facilityRepository) GetConsumption(ctx context.Context, id uint) (*domain.Consumption, error) {
	var model ConsumptionModel
	if err := db.Conn(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toDomain()
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository 创建光伏系统与财务结果仓储
func NewAssessmentRepository(db *gorm.DB) domain.AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) SavePVSystem(ctx context.Context, pv *domain.PVSystem) error {
	model := &PVSystemModel{
		FacilityID:          pv.FacilityID,
		ConsumptionID:       pv.ConsumptionID,
		IrradianceKWhM2:     money(pv.IrradianceKWhM2),
		NumPanels:           pv.NumPanels,
		InstalledCapacityKW: money(pv.InstalledCapacityKW),
		MonthlyEnergyKWh:    money(pv.MonthlyEnergyKWh),
	}
	if err := db.Conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	pv.ID = model.ID
	pv.CreatedAt = model.CreatedAt
	return nil
}

func (r *assessmentRepository) SaveFinancialResult(ctx context.Context, fr *domain.FinancialResult) error {
	model := &FinancialResultModel{
		PVSystemID:        fr.PVSystemID,
		Capex:             money(fr.Capex),
		Opex:              money(fr.Opex),
		NPV:               money(fr.NPV),
		ReturnRatio:       money(fr.ReturnRatio),
		InitialInvestment: money(fr.InitialInvestment),
		AnnualSavings:     money(fr.AnnualSavings),
		PaybackYears:      money(fr.PaybackYears),
	}
	if err := db.Conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	fr.ID = model.ID
	return nil
}

func (r *assessmentRepository) LatestPVSystem(ctx context.Context, facilityID uint) (*domain.PVSystem, error) {
	var model PVSystemModel
	err := db.Conn(ctx, r.db).Where("facility_id = ?", facilityID).Order("created_at DESC, id DESC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toDomain()
}
