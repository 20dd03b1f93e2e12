package domain

import (
	"math"
	"time"
)

// PointInput 单时刻预测输入
type PointInput struct {
	Timestamp    time.Time
	TemperatureC float64
	ClassPeriod  bool
	Holiday      bool
	Exam         bool
}

// Features 特征名到取值
type Features map[string]float64

// ConsumptionPredictor 15 分钟用电量（kWh）预测模型
type ConsumptionPredictor interface {
	Predict(f Features) float64
}

// History 近期用电历史的摘要，用来近似滞后与波动特征
type History struct {
	// Profile[星期][小时] 同星期同小时的平均用电量，NaN 表示没有样本
	Profile [7][24]float64
	// Mean 全部样本均值
	Mean float64
	// DailyStd 日滚动标准差的均值
	DailyStd float64
}

// Similar 同星期同小时的均值，无样本时回落到总均值
func (h *History) Similar(dayOfWeek, hour int) float64 {
	v := h.Profile[dayOfWeek][hour]
	if math.IsNaN(v) {
		return h.Mean
	}
	return v
}

// FeatureBuilder 由输入和历史构造模型特征
type FeatureBuilder struct {
	history *History
}

// NewFeatureBuilder 创建特征构造器
func NewFeatureBuilder(history *History) *FeatureBuilder {
	return &FeatureBuilder{history: history}
}

// Build 构造全部特征；差分特征没有实时数据，固定为 0
func (b *FeatureBuilder) Build(in PointInput) Features {
	ts := in.Timestamp
	hour := ts.Hour()
	dow := DayOfWeek(ts)
	peak := IsPeak(ts)
	similar := b.history.Similar(dow, hour)
	std1d := b.history.DailyStd
	max1d := similar * 1.2
	min1d := similar * 0.7

	return Features{
		"hour":             float64(hour),
		"dayofweek":        float64(dow),
		"month":            float64(ts.Month()),
		"is_weekend":       flag(IsWeekend(ts)),
		"hour_sin":         math.Sin(2 * math.Pi * float64(hour) / 24),
		"hour_cos":         math.Cos(2 * math.Pi * float64(hour) / 24),
		"dayofweek_sin":    math.Sin(2 * math.Pi * float64(dow) / 7),
		"dayofweek_cos":    math.Cos(2 * math.Pi * float64(dow) / 7),
		"is_holiday":       flag(in.Holiday),
		"is_semester":      flag(in.ClassPeriod),
		"is_exam":          flag(in.Exam),
		"air_temperature":  in.TemperatureC,
		"temp_squared":     in.TemperatureC * in.TemperatureC,
		"lag_1d":           similar,
		"lag_2d":           similar * 0.98,
		"lag_1w":           similar * 1.02,
		"rolling_mean_24h": similar,
		"rolling_max_24h":  similar * 1.2,
		"std_1d":           std1d,
		"std_2h":           std1d * 0.5,
		"max_1d":           max1d,
		"min_1d":           min1d,
		"range_1d":         max1d - min1d,
		"diff_1":           0,
		"diff_4":           0,
		"is_peak_hour":     flag(peak),
		"temp_x_peak":      in.TemperatureC * flag(peak),
		"workday_semester": flag(!IsWeekend(ts) && in.ClassPeriod),
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// MonthTemperature 按小时起伏的日内温度曲线
func MonthTemperature(avg float64, hour int) float64 {
	return avg + 4*math.Sin(2*math.Pi*float64(hour-6)/24)
}
