package domain

import "github.com/shopspring/decimal"

// 光伏系统与财务测算参数.
var (
	// AreaPerRoomM2 每个诊室折算的屋顶面积（m²）
	AreaPerRoomM2 = decimal.NewFromInt(20)
	// AreaPerEquipmentM2 每台设备折算的面积（m²）
	AreaPerEquipmentM2 = decimal.NewFromInt(5)
	// UsableAreaRatio 可用于铺设组件的面积比例，其余留作通道、遮挡与结构间距
	UsableAreaRatio = decimal.RequireFromString("0.6")

	// PanelAreaM2 单块组件占地面积
	PanelAreaM2 = decimal.RequireFromString("1.6")
	// PanelRatingKW 单块组件额定功率
	PanelRatingKW = decimal.RequireFromString("0.5")
	// SystemEfficiency 系统综合效率（逆变、线损、积灰）
	SystemEfficiency = decimal.RequireFromString("0.85")

	// PanelUnitCost 组件单价
	PanelUnitCost = decimal.NewFromInt(300)
	// InverterCostPerKW 逆变器每 kW 成本
	InverterCostPerKW = decimal.NewFromInt(800)
	// InstallationRate 安装费占硬件小计的比例
	InstallationRate = decimal.RequireFromString("0.3")
	// OpexRate 年运维费占 CAPEX 的比例
	OpexRate = decimal.RequireFromString("0.015")

	// EnergyPrice 电价（每 kWh）
	EnergyPrice = decimal.RequireFromString("0.18")
	// MonthsPerYear 年化系数
	MonthsPerYear = decimal.NewFromInt(12)

	// DiscountRate 折现率
	DiscountRate = decimal.RequireFromString("0.08")

	// PaybackNever 净现金流非正时的回收期哨兵值
	PaybackNever = decimal.NewFromInt(999)
)

// SystemLifetimeYears 系统寿命（年）
const SystemLifetimeYears = 25

// MoneyPlaces 对外发布的小数位数
const MoneyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// publish 在发布边界四舍五入到两位小数（远离零方向，对非负值即 HALF_UP）
func publish(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
