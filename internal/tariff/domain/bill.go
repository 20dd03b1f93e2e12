package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParseBillingMonth 解析 YYYY-MM，返回该月第一天 00:00（UTC）
func ParseBillingMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalidInput, s)
	}
	return t, nil
}

// MonthIntervals 从月初到月末最后一个 15 分钟区间的起始时刻
func MonthIntervals(start time.Time) []time.Time {
	end := start.AddDate(0, 1, 0)
	out := make([]time.Time, 0, 31*24*IntervalsPerHour)
	for t := start; t.Before(end); t = t.Add(15 * time.Minute) {
		out = append(out, t)
	}
	return out
}

// BillSummary 月度账单汇总
type BillSummary struct {
	Month               string
	TotalConsumptionKWh decimal.Decimal
	TotalCost           decimal.Decimal
	PeakCost            decimal.Decimal
	OffPeakCost         decimal.Decimal
	PeakSharePercent    decimal.Decimal
	DailyAverageCost    decimal.Decimal
	DailyAverageKWh     decimal.Decimal
	PeakIntervals       int
	OffPeakIntervals    int
}

// Bill 累加区间的月度账单
type Bill struct {
	month       string
	days        int
	consumption decimal.Decimal
	peakCost    decimal.Decimal
	offPeakCost decimal.Decimal
	peakCount   int
	offCount    int
}

// NewBill 创建账单，days 为该月天数
func NewBill(month string, days int) *Bill {
	return &Bill{month: month, days: days}
}

// Add 累加一个区间；按区间已取整的用电量与费用累加
func (b *Bill) Add(iv Interval) {
	b.consumption = b.consumption.Add(iv.ConsumptionKWh)
	if iv.Peak {
		b.peakCost = b.peakCost.Add(iv.Cost15Min)
		b.peakCount++
		return
	}
	b.offPeakCost = b.offPeakCost.Add(iv.Cost15Min)
	b.offCount++
}

// Summary 汇总，总费用为 0 时高峰占比为 0
func (b *Bill) Summary() BillSummary {
	total := b.peakCost.Add(b.offPeakCost)
	share := decimal.Zero
	if !total.IsZero() {
		share = b.peakCost.Div(total).Mul(decimal.NewFromInt(100)).Round(1)
	}
	days := decimal.NewFromInt(int64(max(b.days, 1)))
	return BillSummary{
		Month:               b.month,
		TotalConsumptionKWh: b.consumption.Round(2),
		TotalCost:           total.Round(2),
		PeakCost:            b.peakCost.Round(2),
		OffPeakCost:         b.offPeakCost.Round(2),
		PeakSharePercent:    share,
		DailyAverageCost:    total.Div(days).Round(2),
		DailyAverageKWh:     b.consumption.Div(days).Round(2),
		PeakIntervals:       b.peakCount,
		OffPeakIntervals:    b.offCount,
	}
}
