package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Input 一次完整测算的输入
type Input struct {
	NumRooms              int
	NumEquipment          int
	MonthlyConsumptionKWh decimal.Decimal
	IrradianceKWhM2       decimal.Decimal
}

// Evaluation 完整测算结果，包含全部中间值与最终指标.
type Evaluation struct {
	Capex                     decimal.Decimal
	Opex                      decimal.Decimal
	NPV                       decimal.Decimal
	ReturnRatioPercent        decimal.Decimal
	PaybackYears              decimal.Decimal
	NumPanels                 int
	InstalledCapacityKW       decimal.Decimal
	AreaUsedM2                decimal.Decimal
	IrradianceUsed            decimal.Decimal
	MonthlyEnergyGeneratedKWh decimal.Decimal
	AnnualSavings             decimal.Decimal
	UsableAreaM2              decimal.Decimal
}

// Evaluate 依次执行面积、发电、成本、收益与投资指标测算.
// 纯函数：无状态、无 I/O，相同输入得到相同输出。
func Evaluate(in Input) Evaluation {
	gen := ComputeGeneration(in.NumRooms, in.NumEquipment, in.IrradianceKWhM2)
	cost := ComputeCost(gen)
	savings := ComputeAnnualSavings(in.MonthlyConsumptionKWh, gen.MonthlyEnergyKWh)
	inv := ComputeInvestment(cost, savings)

	return Evaluation{
		Capex:                     cost.Capex,
		Opex:                      cost.Opex,
		NPV:                       inv.NPV,
		ReturnRatioPercent:        inv.ReturnRatioPercent,
		PaybackYears:              inv.PaybackYears,
		NumPanels:                 gen.NumPanels,
		InstalledCapacityKW:       gen.InstalledCapacityKW,
		AreaUsedM2:                gen.AreaUsedM2,
		IrradianceUsed:            in.IrradianceKWhM2,
		MonthlyEnergyGeneratedKWh: gen.MonthlyEnergyKWh,
		AnnualSavings:             savings,
		UsableAreaM2:              gen.AreaUsedM2,
	}
}

// Investment 还原投资指标部分
func (e Evaluation) Investment() Investment {
	return Investment{NPV: e.NPV, ReturnRatioPercent: e.ReturnRatioPercent, PaybackYears: e.PaybackYears}
}

// Viable 月发电量是否覆盖月用电量
func (e Evaluation) Viable(monthlyConsumption decimal.Decimal) bool {
	return e.MonthlyEnergyGeneratedKWh.GreaterThanOrEqual(monthlyConsumption)
}

type evaluationJSON struct {
	Capex                     json.Number `json:"capex"`
	Opex                      json.Number `json:"opex"`
	NPV                       json.Number `json:"npv"`
	ReturnRatioPercent        json.Number `json:"return_ratio_percent"`
	PaybackYears              json.Number `json:"payback_years"`
	NumPanels                 int         `json:"num_panels"`
	InstalledCapacityKW       json.Number `json:"installed_capacity_kw"`
	AreaUsedM2                json.Number `json:"area_used_m2"`
	IrradianceUsed            json.Number `json:"irradiance_used"`
	MonthlyEnergyGeneratedKWh json.Number `json:"monthly_energy_generated_kwh"`
	AnnualSavings             json.Number `json:"annual_savings"`
}

func fixed(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(MoneyPlaces))
}

// MarshalJSON 所有小数字段输出为恰好两位小数的 JSON 数字
func (e Evaluation) MarshalJSON() ([]byte, error) {
	return json.Marshal(evaluationJSON{
		Capex:                     fixed(e.Capex),
		Opex:                      fixed(e.Opex),
		NPV:                       fixed(e.NPV),
		ReturnRatioPercent:        fixed(e.ReturnRatioPercent),
		PaybackYears:              fixed(e.PaybackYears),
		NumPanels:                 e.NumPanels,
		InstalledCapacityKW:       fixed(e.InstalledCapacityKW),
		AreaUsedM2:                fixed(e.AreaUsedM2),
		IrradianceUsed:            fixed(e.IrradianceUsed),
		MonthlyEnergyGeneratedKWh: fixed(e.MonthlyEnergyGeneratedKWh),
		AnnualSavings:             fixed(e.AnnualSavings),
	})
}

// UnmarshalJSON 解析 MarshalJSON 的输出，回收期哨兵值 999 原样保留
func (e *Evaluation) UnmarshalJSON(data []byte) error {
	var raw evaluationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := []struct {
		dst *decimal.Decimal
		src json.Number
	}{
		{&e.Capex, raw.Capex},
		{&e.Opex, raw.Opex},
		{&e.NPV, raw.NPV},
		{&e.ReturnRatioPercent, raw.ReturnRatioPercent},
		{&e.PaybackYears, raw.PaybackYears},
		{&e.InstalledCapacityKW, raw.InstalledCapacityKW},
		{&e.AreaUsedM2, raw.AreaUsedM2},
		{&e.IrradianceUsed, raw.IrradianceUsed},
		{&e.MonthlyEnergyGeneratedKWh, raw.MonthlyEnergyGeneratedKWh},
		{&e.AnnualSavings, raw.AnnualSavings},
	}
	for _, f := range fields {
		if f.src == "" {
			*f.dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(f.src.String())
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", f.src, err)
		}
		*f.dst = d
	}
	e.NumPanels = raw.NumPanels
	e.UsableAreaM2 = e.AreaUsedM2
	return nil
}
