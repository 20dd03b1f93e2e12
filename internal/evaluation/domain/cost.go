package domain

import "github.com/shopspring/decimal"

// Cost 投资与运维成本
type Cost struct {
	Capex decimal.Decimal
	Opex  decimal.Decimal
}

// ComputeCapex 组件费 + 逆变器费，再加硬件小计 30% 的安装费
func ComputeCapex(numPanels int, capacityKW decimal.Decimal) decimal.Decimal {
	panels := decimal.NewFromInt(int64(numPanels)).Mul(PanelUnitCost)
	inverter := capacityKW.Mul(InverterCostPerKW)
	hardware := panels.Add(inverter)
	installation := hardware.Mul(InstallationRate)
	return publish(hardware.Add(installation))
}

// ComputeOpex 年运维费，CAPEX 的 1.5%
func ComputeOpex(capex decimal.Decimal) decimal.Decimal {
	return publish(capex.Mul(OpexRate))
}

// ComputeCost 组合 CAPEX 与 OPEX
func ComputeCost(g Generation) Cost {
	capex := ComputeCapex(g.NumPanels, g.InstalledCapacityKW)
	return Cost{Capex: capex, Opex: ComputeOpex(capex)}
}
