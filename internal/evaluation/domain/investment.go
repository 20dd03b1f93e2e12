package domain

import "github.com/shopspring/decimal"

// npvPrecision 单期折现项的保留位数，求和后再统一四舍五入
const npvPrecision int32 = 20

// Investment 投资指标
type Investment struct {
	NPV decimal.Decimal
	// ReturnRatioPercent 单期净收益/CAPEX，历史上被称作 IRR，不是迭代求解的内部收益率
	ReturnRatioPercent decimal.Decimal
	PaybackYears       decimal.Decimal
}

// NetAnnualFlow 年净现金流
func NetAnnualFlow(annualSavings, opex decimal.Decimal) decimal.Decimal {
	return annualSavings.Sub(opex)
}

// ComputeNPV 25 年等额净现金流按 8% 折现，减去 CAPEX
func ComputeNPV(capex, opex, annualSavings decimal.Decimal) decimal.Decimal {
	flow := NetAnnualFlow(annualSavings, opex)
	growth := decimal.NewFromInt(1).Add(DiscountRate)

	npv := capex.Neg()
	factor := decimal.NewFromInt(1)
	for year := 1; year <= SystemLifetimeYears; year++ {
		factor = factor.Mul(growth)
		npv = npv.Add(flow.DivRound(factor, npvPrecision))
	}
	return publish(npv)
}

// ComputeReturnRatio 简化收益率（百分比），CAPEX 为 0 时返回 0
func ComputeReturnRatio(capex, annualSavings, opex decimal.Decimal) decimal.Decimal {
	if capex.IsZero() {
		return decimal.Zero
	}
	flow := NetAnnualFlow(annualSavings, opex)
	return publish(flow.DivRound(capex, npvPrecision).Mul(hundred))
}

// ComputePaybackPeriod 静态回收期，净现金流不大于 0 时返回 PaybackNever
func ComputePaybackPeriod(capex, annualSavings, opex decimal.Decimal) decimal.Decimal {
	flow := NetAnnualFlow(annualSavings, opex)
	if !flow.IsPositive() {
		return PaybackNever
	}
	return publish(capex.DivRound(flow, npvPrecision))
}

// ComputeInvestment 组合三项投资指标
func ComputeInvestment(c Cost, annualSavings decimal.Decimal) Investment {
	return Investment{
		NPV:                ComputeNPV(c.Capex, c.Opex, annualSavings),
		ReturnRatioPercent: ComputeReturnRatio(c.Capex, annualSavings, c.Opex),
		PaybackYears:       ComputePaybackPeriod(c.Capex, annualSavings, c.Opex),
	}
}

// NeverPaysBack 是否为回收期哨兵值
func (i Investment) NeverPaysBack() bool {
	return i.PaybackYears.Equal(PaybackNever)
}
