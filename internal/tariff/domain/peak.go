package domain

import "fmt"

// 削峰分类标签
const (
	LabelPeak   = "High Consumption Peak"
	LabelNormal = "Normal Consumption"
)

// PeakInput 削峰分类输入
type PeakInput struct {
	Hour         int
	DayOfWeek    int
	GHI          float64
	CloudOpacity float64
}

// Validate hour 0-23，day_of_week 0-6，辐照与云量非负
func (in PeakInput) Validate() error {
	switch {
	case in.Hour < 0 || in.Hour > 23:
		return fmt.Errorf("%w: hour %d outside [0, 23]", ErrInvalidInput, in.Hour)
	case in.DayOfWeek < 0 || in.DayOfWeek > 6:
		return fmt.Errorf("%w: day_of_week %d outside [0, 6]", ErrInvalidInput, in.DayOfWeek)
	case in.GHI < 0:
		return fmt.Errorf("%w: ghi must not be negative", ErrInvalidInput)
	case in.CloudOpacity < 0:
		return fmt.Errorf("%w: cloud_opacity must not be negative", ErrInvalidInput)
	}
	return nil
}

// Vector 模型输入顺序：hour, day_of_week, ghi, cloud_opacity
func (in PeakInput) Vector() []float64 {
	return []float64{float64(in.Hour), float64(in.DayOfWeek), in.GHI, in.CloudOpacity}
}

// PeakShavingClassifier 返回是否为用电高峰以及高峰类的概率
type PeakShavingClassifier interface {
	Classify(in PeakInput) (peak bool, probability float64)
}

// Label 分类结果的展示标签
func Label(peak bool) string {
	if peak {
		return LabelPeak
	}
	return LabelNormal
}
