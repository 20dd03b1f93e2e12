// Package mysql 机构上下文的 GORM 模型与仓储
package mysql

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/facility/domain"
)

// FacilityModel 医疗机构表
type FacilityModel struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string    `gorm:"column:name;type:varchar(100);not null;comment:机构名称"`
	Type         string    `gorm:"column:type;type:varchar(50);comment:机构类型"`
	NumRooms     int       `gorm:"column:num_rooms;not null;comment:诊室数"`
	NumEquipment int       `gorm:"column:num_equipment;not null;comment:设备数"`
	CityID       uint      `gorm:"column:city_id;not null;index;comment:城市"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (FacilityModel) TableName() string { return "facilities" }

// ConsumptionModel 用电量表
type ConsumptionModel struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FacilityID uint      `gorm:"column:facility_id;not null;index"`
	Month      int       `gorm:"column:month;not null"`
	Year       int       `gorm:"column:year;not null"`
	KWh        string    `gorm:"column:kwh;type:decimal(12,2);not null"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null"`
}

func (ConsumptionModel) TableName() string { return "consumptions" }

// PVSystemModel 光伏系统表
type PVSystemModel struct {
	ID                  uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FacilityID          uint      `gorm:"column:facility_id;not null;index:idx_pv_facility_created,priority:1"`
	ConsumptionID       uint      `gorm:"column:consumption_id;not null"`
	IrradianceKWhM2     string    `gorm:"column:irradiance_kwh_m2;type:decimal(8,2);not null"`
	NumPanels           int       `gorm:"column:num_panels;not null"`
	InstalledCapacityKW string    `gorm:"column:installed_capacity_kw;type:decimal(12,2);not null"`
	MonthlyEnergyKWh    string    `gorm:"column:monthly_energy_kwh;type:decimal(12,2);not null"`
	CreatedAt           time.Time `gorm:"column:created_at;index:idx_pv_facility_created,priority:2"`
}

func (PVSystemModel) TableName() string { return "pv_systems" }

// FinancialResultModel 财务结果表
type FinancialResultModel struct {
	ID                uint   `gorm:"column:id;primaryKey;autoIncrement"`
	PVSystemID        uint   `gorm:"column:pv_system_id;not null;uniqueIndex"`
	Capex             string `gorm:"column:capex;type:decimal(14,2);not null"`
	Opex              string `gorm:"column:opex;type:decimal(14,2);not null"`
	NPV               string `gorm:"column:npv;type:decimal(16,2);not null"`
	ReturnRatio       string `gorm:"column:return_ratio;type:decimal(12,2);not null"`
	InitialInvestment string `gorm:"column:initial_investment;type:decimal(14,2);not null"`
	AnnualSavings     string `gorm:"column:annual_savings;type:decimal(14,2);not null"`
	PaybackYears      string `gorm:"column:payback_years;type:decimal(10,2);not null"`
}

func (FinancialResultModel) TableName() string { return "financial_results" }

// Models 需要自动迁移的模型
func Models() []any {
	return []any{&FacilityModel{}, &ConsumptionModel{}, &PVSystemModel{}, &FinancialResultModel{}}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func parse(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

func toFacilityModel(f *domain.Facility) *FacilityModel {
	return &FacilityModel{
		ID:           f.ID,
		Name:         f.Name,
		Type:         f.Type,
		NumRooms:     f.NumRooms,
		NumEquipment: f.NumEquipment,
		CityID:       f.CityID,
		CreatedAt:    f.CreatedAt,
	}
}

func (m *FacilityModel) toDomain() *domain.Facility {
	return &domain.Facility{
		ID:           m.ID,
		Name:         m.Name,
		Type:         m.Type,
		NumRooms:     m.NumRooms,
		NumEquipment: m.NumEquipment,
		CityID:       m.CityID,
		CreatedAt:    m.CreatedAt,
	}
}

func (m *ConsumptionModel) toDomain() (*domain.Consumption, error) {
	kwh, err := parse("kwh", m.KWh)
	if err != nil {
		return nil, err
	}
	return &domain.Consumption{
		ID:         m.ID,
		FacilityID: m.FacilityID,
		Month:      m.Month,
		Year:       m.Year,
		KWh:        kwh,
		RecordedAt: m.RecordedAt,
	}, nil
}

func (m *PVSystemModel) toDomain() (*domain.PVSystem, error) {
	irr, err := parse("irradiance", m.IrradianceKWhM2)
	if err != nil {
		return nil, err
	}
	capacity, err := parse("installed capacity", m.InstalledCapacityKW)
	if err != nil {
		return nil, err
	}
	energy, err := parse("monthly energy", m.MonthlyEnergyKWh)
	if err != nil {
		return nil, err
	}
	return &domain.PVSystem{
		ID:                  m.ID,
		FacilityID:          m.FacilityID,
		ConsumptionID:       m.ConsumptionID,
		IrradianceKWhM2:     irr,
		NumPanels:           m.NumPanels,
		InstalledCapacityKW: capacity,
		MonthlyEnergyKWh:    energy,
		CreatedAt:           m.CreatedAt,
	}, nil
}
