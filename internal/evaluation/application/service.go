// Package application 光伏可行性测算用例
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
	"github.com/wyfcoding/solarhealth/internal/evaluation/domain"
	"github.com/wyfcoding/solarhealth/pkg/metrics"
)

var (
	// ErrInvalidInput 输入违反非负约束
	ErrInvalidInput = errors.New("invalid evaluation input")
	// ErrBatchTooLarge 批量条数超过上限
	ErrBatchTooLarge = errors.New("batch too large")
)

// EvaluateCommand 测算命令
type EvaluateCommand struct {
	NumRooms              int
	NumEquipment          int
	MonthlyConsumptionKWh decimal.Decimal
	IrradianceKWhM2       decimal.Decimal
}

// Validate 引擎不做校验，由这里保证非负
func (c EvaluateCommand) Validate() error {
	switch {
	case c.NumRooms < 0:
		return fmt.Errorf("%w: num_rooms must be >= 0", ErrInvalidInput)
	case c.NumEquipment < 0:
		return fmt.Errorf("%w: num_equipment must be >= 0", ErrInvalidInput)
	case c.MonthlyConsumptionKWh.IsNegative():
		return fmt.Errorf("%w: monthly_consumption_kwh must be >= 0", ErrInvalidInput)
	case c.IrradianceKWhM2.IsNegative():
		return fmt.Errorf("%w: irradiance must be >= 0", ErrInvalidInput)
	}
	return nil
}

func (c EvaluateCommand) input() domain.Input {
	return domain.Input{
		NumRooms:              c.NumRooms,
		NumEquipment:          c.NumEquipment,
		MonthlyConsumptionKWh: c.MonthlyConsumptionKWh,
		IrradianceKWhM2:       c.IrradianceKWhM2,
	}
}

// Options 服务参数
type Options struct {
	MaxBatchSize int
	Concurrency  int
}

// EvaluationService 测算应用服务
type EvaluationService struct {
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger
}

// NewEvaluationService 创建测算服务，m 可以为 nil
func NewEvaluationService(m *metrics.Metrics, opts Options, logger *slog.Logger) *EvaluationService {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &EvaluationService{
		metrics: m,
		opts:    opts,
		logger:  logger.With("service", "evaluation"),
	}
}

// Evaluate 单次测算
func (s *EvaluationService) Evaluate(ctx context.Context, cmd EvaluateCommand) (*domain.Evaluation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ev := domain.Evaluate(cmd.input())
	s.record(cmd, ev)

	s.logger.DebugContext(ctx, "evaluation computed",
		"num_rooms", cmd.NumRooms,
		"num_equipment", cmd.NumEquipment,
		"num_panels", ev.NumPanels,
		"npv", ev.NPV.String(),
	)
	return &ev, nil
}

// EvaluateBatch 并发测算，结果顺序与输入一致；任一条校验失败则整体失败
func (s *EvaluationService) EvaluateBatch(ctx context.Context, cmds []EvaluateCommand) ([]domain.Evaluation, error) {
	if len(cmds) > s.opts.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(cmds), s.opts.MaxBatchSize)
	}
	for i, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	mapper := iter.Mapper[EvaluateCommand, domain.Evaluation]{MaxGoroutines: s.opts.Concurrency}
	results := mapper.Map(cmds, func(cmd *EvaluateCommand) domain.Evaluation {
		ev := domain.Evaluate(cmd.input())
		s.record(*cmd, ev)
		return ev
	})

	s.logger.InfoContext(ctx, "batch evaluation computed", "count", len(results))
	return results, nil
}

func (s *EvaluationService) record(cmd EvaluateCommand, ev domain.Evaluation) {
	if s.metrics == nil {
		return
	}
	viable := ev.Viable(cmd.MonthlyConsumptionKWh)
	s.metrics.EvaluationsTotal.WithLabelValues(strconv.FormatBool(viable)).Inc()
	if ev.Investment().NeverPaysBack() {
		s.metrics.EvaluationNeverPayback.Inc()
	}
}
