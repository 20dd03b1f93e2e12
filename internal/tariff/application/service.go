// Package application 用电量、电费与削峰预测用例
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
	"github.com/wyfcoding/solarhealth/internal/tariff/domain"
	"github.com/wyfcoding/solarhealth/pkg/metrics"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp 接受带或不带时区的 ISO-8601 时间；不带时区时按本地墙上时间处理
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q is not ISO-8601", domain.ErrInvalidInput, s)
}

// PointRequest 单时刻预测请求
type PointRequest struct {
	Timestamp   string
	Temperature float64
	ClassPeriod bool
	Holiday     bool
	Exam        bool
}

// PointPrediction 单时刻预测结果
type PointPrediction struct {
	Timestamp string
	Weekday   string
	domain.Interval
}

// MonthRequest 月度账单请求
type MonthRequest struct {
	Month          string
	AvgTemperature float64
	ClassPeriod    bool
}

// PeakPrediction 削峰分类结果
type PeakPrediction struct {
	PeakShaving bool
	Label       string
	Confidence  decimal.Decimal // 三位小数
}

// TariffService 预测应用服务
type TariffService struct {
	predictor  domain.ConsumptionPredictor
	features   *domain.FeatureBuilder
	classifier domain.PeakShavingClassifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewTariffService 创建服务，m 可以为 nil
func NewTariffService(
	predictor domain.ConsumptionPredictor,
	features *domain.FeatureBuilder,
	classifier domain.PeakShavingClassifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TariffService {
	return &TariffService{
		predictor:  predictor,
		features:   features,
		classifier: classifier,
		metrics:    m,
		logger:     logger.With("service", "tariff"),
	}
}

func (s *TariffService) interval(in domain.PointInput) domain.Interval {
	kwh := s.predictor.Predict(s.features.Build(in))
	return domain.PriceInterval(in.Timestamp, kwh)
}

// PredictPoint 预测某个 15 分钟区间的用电量与费用
func (s *TariffService) PredictPoint(ctx context.Context, req PointRequest) (*PointPrediction, error) {
	if err := domain.ValidateTemperature(req.Temperature); err != nil {
		return nil, err
	}
	ts, err := ParseTimestamp(req.Timestamp)
	if err != nil {
		return nil, err
	}

	iv := s.interval(domain.PointInput{
		Timestamp:    ts,
		TemperatureC: req.Temperature,
		ClassPeriod:  req.ClassPeriod,
		Holiday:      req.Holiday,
		Exam:         req.Exam,
	})
	s.count("point")
	s.logger.DebugContext(ctx, "point prediction", "timestamp", req.Timestamp, "kwh", iv.ConsumptionKWh.String())
	return &PointPrediction{Timestamp: req.Timestamp, Weekday: ts.Weekday().String(), Interval: iv}, nil
}

// PredictMonth 预测整月每个 15 分钟区间并汇总账单.
// 温度按日内正弦曲线变化，周末不算教学期。
func (s *TariffService) PredictMonth(ctx context.Context, req MonthRequest) (*domain.BillSummary, error) {
	if err := domain.ValidateTemperature(req.AvgTemperature); err != nil {
		return nil, err
	}
	start, err := domain.ParseBillingMonth(req.Month)
	if err != nil {
		return nil, err
	}

	timestamps := domain.MonthIntervals(start)
	intervals := iter.Map(timestamps, func(ts *time.Time) domain.Interval {
		return s.interval(domain.PointInput{
			Timestamp:    *ts,
			TemperatureC: domain.MonthTemperature(req.AvgTemperature, ts.Hour()),
			ClassPeriod:  req.ClassPeriod && !domain.IsWeekend(*ts),
		})
	})

	days := timestamps[len(timestamps)-1].Day()
	bill := domain.NewBill(req.Month, days)
	for _, iv := range intervals {
		bill.Add(iv)
	}
	summary := bill.Summary()

	s.count("monthly")
	s.logger.InfoContext(ctx, "monthly bill predicted",
		"month", req.Month,
		"intervals", len(intervals),
		"total_cost", summary.TotalCost.String(),
	)
	return &summary, nil
}

// PredictPeakShaving 判断给定时刻是否为需要削峰的用电高峰
func (s *TariffService) PredictPeakShaving(ctx context.Context, in domain.PeakInput) (*PeakPrediction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	peak, p := s.classifier.Classify(in)
	s.count("peak_shaving")
	s.logger.DebugContext(ctx, "peak shaving classified", "hour", in.Hour, "day_of_week", in.DayOfWeek, "peak", peak)
	return &PeakPrediction{
		PeakShaving: peak,
		Label:       domain.Label(peak),
		Confidence:  decimal.NewFromFloat(p).Round(3),
	}, nil
}

func (s *TariffService) count(kind string) {
	if s.metrics != nil {
		s.metrics.PredictionsTotal.WithLabelValues(kind).Inc()
	}
}
