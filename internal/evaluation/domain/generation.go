package domain

import "github.com/shopspring/decimal"

// Generation 发电测算结果
type Generation struct {
	NumPanels           int
	InstalledCapacityKW decimal.Decimal
	MonthlyEnergyKWh    decimal.Decimal
	// AreaUsedM2 报告的是可用面积，而不是 NumPanels*1.6
	AreaUsedM2 decimal.Decimal
}

// PanelCount 可安装的整块组件数，截断取整
func PanelCount(usableArea decimal.Decimal) int {
	q, _ := usableArea.QuoRem(PanelAreaM2, 0)
	return int(q.IntPart())
}

// ComputeGeneration 由机构规模与辐照度计算组件数、装机容量和月发电量.
func ComputeGeneration(numRooms, numEquipment int, irradiance decimal.Decimal) Generation {
	area := FacilitySize{NumRooms: numRooms, NumEquipment: numEquipment}.UsableArea()
	panels := PanelCount(area)
	capacity := PanelRatingKW.Mul(decimal.NewFromInt(int64(panels)))
	energy := capacity.Mul(irradiance).Mul(SystemEfficiency)

	return Generation{
		NumPanels:           panels,
		InstalledCapacityKW: publish(capacity),
		MonthlyEnergyKWh:    publish(energy),
		AreaUsedM2:          publish(area),
	}
}
