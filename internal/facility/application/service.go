// Package application 医疗机构登记与测算用例
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	evalapp "github.com/wyfcoding/solarhealth/internal/evaluation/application"
	evaluation "github.com/wyfcoding/solarhealth/internal/evaluation/domain"
	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	"github.com/wyfcoding/solarhealth/pkg/idgen"
	"github.com/wyfcoding/solarhealth/pkg/metrics"
	"github.com/wyfcoding/solarhealth/pkg/utils"
)

// IrradianceSource 城市月度辐照度，found=false 表示没有实测值
type IrradianceSource interface {
	Irradiance(ctx context.Context, cityID uint, month int) (decimal.Decimal, bool, error)
}

// Evaluator 光伏测算
type Evaluator interface {
	Evaluate(ctx context.Context, cmd evalapp.EvaluateCommand) (*evaluation.Evaluation, error)
}

// RegisterFacilityCommand 登记机构
type RegisterFacilityCommand struct {
	Name         string
	Type         string
	NumRooms     int
	NumEquipment int
	CityID       uint
}

// RegisterCompleteCommand 登记机构、用电量并完成测算
type RegisterCompleteCommand struct {
	RegisterFacilityCommand
	Month          int
	Year           int
	ConsumptionKWh decimal.Decimal
}

// RegistrationResult 完整登记结果
type RegistrationResult struct {
	Facility          *domain.Facility
	Consumption       *domain.Consumption
	IrradianceKWhM2   decimal.Decimal
	IrradianceFound   bool
	Evaluation        *evaluation.Evaluation
	Viable            bool
	PVSystemID        uint
	FinancialResultID uint
}

// FacilityService 机构应用服务
type FacilityService struct {
	facilities        domain.FacilityRepository
	assessments       domain.AssessmentRepository
	readModel         domain.EvaluationReadRepository
	publisher         domain.EventPublisher
	tx                domain.Transactor
	irradiance        IrradianceSource
	evaluator         Evaluator
	ids               idgen.Generator
	defaultIrradiance decimal.Decimal
	metrics           *metrics.Metrics
	logger            *slog.Logger
	now               func() time.Time
}

// NewFacilityService 创建服务；readModel 与 m 可以为 nil
func NewFacilityService(
	facilities domain.FacilityRepository,
	assessments domain.AssessmentRepository,
	readModel domain.EvaluationReadRepository,
	publisher domain.EventPublisher,
	tx domain.Transactor,
	irradiance IrradianceSource,
	evaluator Evaluator,
	ids idgen.Generator,
	defaultIrradiance decimal.Decimal,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FacilityService {
	return &FacilityService{
		facilities:        facilities,
		assessments:       assessments,
		readModel:         readModel,
		publisher:         publisher,
		tx:                tx,
		irradiance:        irradiance,
		evaluator:         evaluator,
		ids:               ids,
		defaultIrradiance: defaultIrradiance,
		metrics:           m,
		logger:            logger.With("service", "facility"),
		now:               time.Now,
	}
}

// ListFacilities 分页列出机构
func (s *FacilityService) ListFacilities(ctx context.Context, page *utils.Pagination) ([]*domain.Facility, error) {
	items, total, err := s.facilities.List(ctx, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	page.SetTotal(total)
	return items, nil
}

// GetFacility 不存在时返回 ErrFacilityNotFound
func (s *FacilityService) GetFacility(ctx context.Context, id uint) (*domain.Facility, error) {
	f, err := s.facilities.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrFacilityNotFound, id)
	}
	return f, nil
}

// RegisterFacility 只登记机构
func (s *FacilityService) RegisterFacility(ctx context.Context, cmd RegisterFacilityCommand) (*domain.Facility, error) {
	f, err := domain.NewFacility(cmd.Name, cmd.Type, cmd.NumRooms, cmd.NumEquipment, cmd.CityID)
	if err != nil {
		return nil, err
	}
	if err := s.facilities.Save(ctx, f); err != nil {
		s.logger.ErrorContext(ctx, "failed to save facility", "name", f.Name, "error", err)
		return nil, fmt.Errorf("failed to register facility: %w", err)
	}
	s.logger.InfoContext(ctx, "facility registered", "facility_id", f.ID)
	return f, nil
}

// RegisterComplete 在一个事务内登记机构与用电量、查辐照度、测算并保存光伏系统与财务结果，
// 同时写入 outbox 事件。任何一步失败整体回滚。
func (s *FacilityService) RegisterComplete(ctx context.Context, cmd RegisterCompleteCommand) (*RegistrationResult, error) {
	facility, err := domain.NewFacility(cmd.Name, cmd.Type, cmd.NumRooms, cmd.NumEquipment, cmd.CityID)
	if err != nil {
		s.countRegistration("invalid")
		return nil, err
	}
	consumption := &domain.Consumption{Month: cmd.Month, Year: cmd.Year, KWh: cmd.ConsumptionKWh}
	if err := consumption.Validate(); err != nil {
		s.countRegistration("invalid")
		return nil, err
	}

	var result *RegistrationResult
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.facilities.Save(ctx, facility); err != nil {
			return fmt.Errorf("save facility: %w", err)
		}

		consumption.FacilityID = facility.ID
		consumption.RecordedAt = s.now().UTC()
		if err := s.facilities.SaveConsumption(ctx, consumption); err != nil {
			return fmt.Errorf("save consumption: %w", err)
		}

		irradiance, found, err := s.irradiance.Irradiance(ctx, facility.CityID, consumption.Month)
		if err != nil {
			return fmt.Errorf("resolve irradiance: %w", err)
		}
		if !found {
			irradiance = s.defaultIrradiance
		}

		ev, err := s.evaluator.Evaluate(ctx, evalapp.EvaluateCommand{
			NumRooms:              facility.NumRooms,
			NumEquipment:          facility.NumEquipment,
			MonthlyConsumptionKWh: consumption.KWh,
			IrradianceKWhM2:       irradiance,
		})
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}

		pv, fr := domain.NewAssessment(facility.ID, consumption.ID, ev)
		if err := s.assessments.SavePVSystem(ctx, pv); err != nil {
			return fmt.Errorf("save pv system: %w", err)
		}
		fr.PVSystemID = pv.ID
		if err := s.assessments.SaveFinancialResult(ctx, fr); err != nil {
			return fmt.Errorf("save financial result: %w", err)
		}

		viable := ev.Viable(consumption.KWh)
		event := &domain.EvaluationCompletedEvent{
			EventID:               strconv.FormatInt(s.ids.NextID(), 10),
			FacilityID:            facility.ID,
			PVSystemID:            pv.ID,
			FinancialResultID:     fr.ID,
			Month:                 consumption.Month,
			Year:                  consumption.Year,
			MonthlyConsumptionKWh: consumption.KWh,
			Evaluation:            *ev,
			Viable:                viable,
			OccurredAt:            consumption.RecordedAt,
		}
		if err := s.publisher.PublishEvaluationCompleted(ctx, event); err != nil {
			return fmt.Errorf("enqueue event: %w", err)
		}

		result = &RegistrationResult{
			Facility:          facility,
			Consumption:       consumption,
			IrradianceKWhM2:   irradiance,
			IrradianceFound:   found,
			Evaluation:        ev,
			Viable:            viable,
			PVSystemID:        pv.ID,
			FinancialResultID: fr.ID,
		}
		return nil
	})
	if err != nil {
		s.countRegistration("failed")
		s.logger.ErrorContext(ctx, "complete registration failed", "name", facility.Name, "city_id", facility.CityID, "error", err)
		return nil, fmt.Errorf("failed to register facility: %w", err)
	}

	s.countRegistration("success")
	s.logger.InfoContext(ctx, "facility registered and evaluated",
		"facility_id", result.Facility.ID,
		"irradiance", result.IrradianceKWhM2.String(),
		"irradiance_found", result.IrradianceFound,
		"viable", result.Viable,
	)
	return result, nil
}

// LatestEvaluation 机构最近一次测算；读模型未命中时由数据库重建.
// 机构存在但从未测算时返回 (nil, nil)。
func (s *FacilityService) LatestEvaluation(ctx context.Context, facilityID uint) (*domain.EvaluationSnapshot, error) {
	if s.readModel != nil {
		snap, err := s.readModel.Get(ctx, facilityID)
		if err != nil {
			s.logger.WarnContext(ctx, "evaluation read model unavailable", "facility_id", facilityID, "error", err)
		}
		if snap != nil {
			return snap, nil
		}
	}

	facility, err := s.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	pv, err := s.assessments.LatestPVSystem(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pv system: %w", err)
	}
	if pv == nil {
		return nil, nil
	}
	consumption, err := s.facilities.GetConsumption(ctx, pv.ConsumptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumption: %w", err)
	}
	if consumption == nil {
		return nil, fmt.Errorf("consumption %d of pv system %d is missing", pv.ConsumptionID, pv.ID)
	}

	ev, err := s.evaluator.Evaluate(ctx, evalapp.EvaluateCommand{
		NumRooms:              facility.NumRooms,
		NumEquipment:          facility.NumEquipment,
		MonthlyConsumptionKWh: consumption.KWh,
		IrradianceKWhM2:       pv.IrradianceKWhM2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild evaluation: %w", err)
	}

	snap := &domain.EvaluationSnapshot{
		FacilityID:            facilityID,
		PVSystemID:            pv.ID,
		Month:                 consumption.Month,
		Year:                  consumption.Year,
		MonthlyConsumptionKWh: consumption.KWh,
		Evaluation:            *ev,
		Viable:                ev.Viable(consumption.KWh),
		EvaluatedAt:           pv.CreatedAt,
	}
	if s.readModel != nil {
		if err := s.readModel.Save(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "failed to refill evaluation read model", "facility_id", facilityID, "error", err)
		}
	}
	return snap, nil
}

// IsInvalid 是否为调用方输入错误
func IsInvalid(err error) bool {
	return errors.Is(err, domain.ErrInvalidFacility) || errors.Is(err, evalapp.ErrInvalidInput)
}

func (s *FacilityService) countRegistration(result string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(result).Inc()
	}
}
