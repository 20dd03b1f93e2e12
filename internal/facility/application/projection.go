package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/solarhealth/internal/facility/domain"
)

// EvaluationProjectionService 把测算完成事件投影到读模型
type EvaluationProjectionService struct {
	readModel domain.EvaluationReadRepository
	logger    *slog.Logger
}

// NewEvaluationProjectionService 创建投影服务
func NewEvaluationProjectionService(readModel domain.EvaluationReadRepository, logger *slog.Logger) *EvaluationProjectionService {
	return &EvaluationProjectionService{readModel: readModel, logger: logger.With("service", "evaluation_projection")}
}

// Apply 只在事件不早于已有读模型时覆盖
func (s *EvaluationProjectionService) Apply(ctx context.Context, event *domain.EvaluationCompletedEvent) error {
	current, err := s.readModel.Get(ctx, event.FacilityID)
	if err != nil {
		return fmt.Errorf("failed to read projection: %w", err)
	}
	if current != nil && current.EvaluatedAt.After(event.OccurredAt) {
		s.logger.DebugContext(ctx, "stale evaluation event skipped", "facility_id", event.FacilityID, "event_id", event.EventID)
		return nil
	}
	if err := s.readModel.Save(ctx, event.Snapshot()); err != nil {
		return fmt.Errorf("failed to save projection: %w", err)
	}
	return nil
}
