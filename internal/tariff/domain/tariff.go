// Package domain 分时电价、用电量预测特征与削峰分类
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// PeakPrice 高峰电价 AUD/kWh
	PeakPrice = decimal.RequireFromString("0.35")
	// OffPeakPrice 非高峰电价 AUD/kWh
	OffPeakPrice = decimal.RequireFromString("0.15")
)

const (
	peakStartHour = 7
	peakEndHour   = 22
	// IntervalsPerHour 每小时的 15 分钟区间数
	IntervalsPerHour = 4
)

// ErrInvalidInput 预测请求参数不合法
var ErrInvalidInput = errors.New("invalid prediction input")

// DayOfWeek 周一为 0，周日为 6
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekend 周六或周日
func IsWeekend(t time.Time) bool {
	return DayOfWeek(t) >= 5
}

// IsPeak 工作日 07:00 至 21:59 为高峰
func IsPeak(t time.Time) bool {
	h := t.Hour()
	return !IsWeekend(t) && h >= peakStartHour && h < peakEndHour
}

// Price 时刻 t 的电价
func Price(t time.Time) decimal.Decimal {
	if IsPeak(t) {
		return PeakPrice
	}
	return OffPeakPrice
}

// Interval 一个 15 分钟区间的预测结果
type Interval struct {
	Timestamp      time.Time
	ConsumptionKWh decimal.Decimal // 两位小数
	PriceKWh       decimal.Decimal
	Cost15Min      decimal.Decimal // 四位小数
	CostHour       decimal.Decimal // 两位小数
	Peak           bool
}

// PriceInterval 按时刻电价为预测用电量计价
func PriceInterval(t time.Time, predictedKWh float64) Interval {
	price := Price(t)
	kwh := decimal.NewFromFloat(predictedKWh)
	cost := kwh.Mul(price)
	return Interval{
		Timestamp:      t,
		ConsumptionKWh: kwh.Round(2),
		PriceKWh:       price,
		Cost15Min:      cost.Round(4),
		CostHour:       cost.Mul(decimal.NewFromInt(IntervalsPerHour)).Round(2),
		Peak:           price.Equal(PeakPrice),
	}
}

// ValidateTemperature 温度须在 [-10, 50] °C
func ValidateTemperature(celsius float64) error {
	if celsius < -10 || celsius > 50 {
		return fmt.Errorf("%w: temperature %.2f outside [-10, 50]", ErrInvalidInput, celsius)
	}
	return nil
}
