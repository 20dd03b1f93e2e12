// Package consumer 消费测算完成事件并刷新读模型
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/solarhealth/internal/facility/application"
	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	"github.com/wyfcoding/solarhealth/pkg/mq"
)

// ProjectionHandler Kafka 消息到读模型的投影
type ProjectionHandler struct {
	projector *application.EvaluationProjectionService
	logger    *slog.Logger
}

// NewProjectionHandler 创建处理器
func NewProjectionHandler(projector *application.EvaluationProjectionService, logger *slog.Logger) *ProjectionHandler {
	return &ProjectionHandler{projector: projector, logger: logger}
}

// Handle 实现 mq.Handler；返回错误时消息进入死信队列
func (h *ProjectionHandler) Handle(ctx context.Context, msg *mq.Message) error {
	var event domain.EvaluationCompletedEvent
	if err := msg.UnmarshalPayload(&event); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal evaluation event", "offset", msg.Offset, "error", err)
		return fmt.Errorf("invalid evaluation event: %w", err)
	}
	if event.FacilityID == 0 {
		h.logger.WarnContext(ctx, "evaluation event without facility id skipped", "offset", msg.Offset)
		return nil
	}
	return h.projector.Apply(ctx, &event)
}
