package domain

import "github.com/shopspring/decimal"

// ComputeAnnualSavings 自用电量取用电与发电的较小值（余电不计收益），按电价年化.
func ComputeAnnualSavings(monthlyConsumption, monthlyGeneration decimal.Decimal) decimal.Decimal {
	selfConsumed := decimal.Min(monthlyConsumption, monthlyGeneration)
	return publish(selfConsumed.Mul(EnergyPrice).Mul(MonthsPerYear))
}
