// Package domain 医疗机构（IPS）、用电记录与光伏测算结果
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	evaluation "github.com/wyfcoding/solarhealth/internal/evaluation/domain"
)

var (
	// ErrFacilityNotFound 机构不存在
	ErrFacilityNotFound = errors.New("facility not found")
	// ErrInvalidFacility 机构数据不合法
	ErrInvalidFacility = errors.New("invalid facility")
)

// Facility 医疗机构
type Facility struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	NumRooms     int       `json:"num_rooms"`
	NumEquipment int       `json:"num_equipment"`
	CityID       uint      `json:"city_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewFacility 创建机构并校验
func NewFacility(name, facilityType string, numRooms, numEquipment int, cityID uint) (*Facility, error) {
	f := &Facility{
		Name:         strings.TrimSpace(name),
		Type:         strings.TrimSpace(facilityType),
		NumRooms:     numRooms,
		NumEquipment: numEquipment,
		CityID:       cityID,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate 名称必填，诊室和设备数量非负
func (f *Facility) Validate() error {
	switch {
	case f.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidFacility)
	case f.NumRooms < 0:
		return fmt.Errorf("%w: num_rooms must not be negative", ErrInvalidFacility)
	case f.NumEquipment < 0:
		return fmt.Errorf("%w: num_equipment must not be negative", ErrInvalidFacility)
	case f.CityID == 0:
		return fmt.Errorf("%w: city_id is required", ErrInvalidFacility)
	}
	return nil
}

// Consumption 机构某月用电量
type Consumption struct {
	ID         uint            `json:"id"`
	FacilityID uint            `json:"facility_id"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	KWh        decimal.Decimal `json:"kwh"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Validate 月份 1-12，用电量非负
func (c *Consumption) Validate() error {
	if c.Month < 1 || c.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidFacility, c.Month)
	}
	if c.Year < 1900 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidFacility, c.Year)
	}
	if c.KWh.IsNegative() {
		return fmt.Errorf("%w: consumption must not be negative", ErrInvalidFacility)
	}
	return nil
}

// PVSystem 为机构测算的光伏系统
type PVSystem struct {
	ID                  uint            `json:"id"`
	FacilityID          uint            `json:"facility_id"`
	ConsumptionID       uint            `json:"consumption_id"`
	IrradianceKWhM2     decimal.Decimal `json:"irradiance_kwh_m2"`
	NumPanels           int             `json:"num_panels"`
	InstalledCapacityKW decimal.Decimal `json:"installed_capacity_kw"`
	MonthlyEnergyKWh    decimal.Decimal `json:"monthly_energy_kwh"`
	CreatedAt           time.Time       `json:"created_at"`
}

// FinancialResult 光伏系统的财务指标
type FinancialResult struct {
	ID                uint            `json:"id"`
	PVSystemID        uint            `json:"pv_system_id"`
	Capex             decimal.Decimal `json:"capex"`
	Opex              decimal.Decimal `json:"opex"`
	NPV               decimal.Decimal `json:"npv"`
	ReturnRatio       decimal.Decimal `json:"return_ratio"`
	InitialInvestment decimal.Decimal `json:"initial_investment"`
	AnnualSavings     decimal.Decimal `json:"annual_savings"`
	PaybackYears      decimal.Decimal `json:"payback_years"`
}

// NewAssessment 由测算结果构造光伏系统与财务结果
func NewAssessment(facilityID, consumptionID uint, ev *evaluation.Evaluation) (*PVSystem, *FinancialResult) {
	pv := &PVSystem{
		FacilityID:          facilityID,
		ConsumptionID:       consumptionID,
		IrradianceKWhM2:     ev.IrradianceUsed,
		NumPanels:           ev.NumPanels,
		InstalledCapacityKW: ev.InstalledCapacityKW,
		MonthlyEnergyKWh:    ev.MonthlyEnergyGeneratedKWh,
	}
	fr := &FinancialResult{
		Capex:             ev.Capex,
		Opex:              ev.Opex,
		NPV:               ev.NPV,
		ReturnRatio:       ev.ReturnRatioPercent,
		InitialInvestment: ev.Capex,
		AnnualSavings:     ev.AnnualSavings,
		PaybackYears:      ev.PaybackYears,
	}
	return pv, fr
}
