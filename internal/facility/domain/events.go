package domain

import (
	"time"

	"github.com/shopspring/decimal"
	evaluation "github.com/wyfcoding/solarhealth/internal/evaluation/domain"
)

// EvaluationCompletedEventType 测算完成事件类型
const EvaluationCompletedEventType = "facility.evaluation.completed"

// EvaluationCompletedEvent 完整登记成功后写入 outbox 的事件
type EvaluationCompletedEvent struct {
	EventID               string                `json:"event_id"`
	FacilityID            uint                  `json:"facility_id"`
	PVSystemID            uint                  `json:"pv_system_id"`
	FinancialResultID     uint                  `json:"financial_result_id"`
	Month                 int                   `json:"month"`
	Year                  int                   `json:"year"`
	MonthlyConsumptionKWh decimal.Decimal       `json:"monthly_consumption_kwh"`
	Evaluation            evaluation.Evaluation `json:"evaluation"`
	Viable                bool                  `json:"viable"`
	OccurredAt            time.Time             `json:"occurred_at"`
}

// EvaluationSnapshot 机构最近一次测算的读模型
type EvaluationSnapshot struct {
	FacilityID            uint                  `json:"facility_id"`
	PVSystemID            uint                  `json:"pv_system_id"`
	Month                 int                   `json:"month"`
	Year                  int                   `json:"year"`
	MonthlyConsumptionKWh decimal.Decimal       `json:"monthly_consumption_kwh"`
	Evaluation            evaluation.Evaluation `json:"evaluation"`
	Viable                bool                  `json:"viable"`
	EvaluatedAt           time.Time             `json:"evaluated_at"`
}

// Snapshot 事件对应的读模型
func (e *EvaluationCompletedEvent) Snapshot() *EvaluationSnapshot {
	return &EvaluationSnapshot{
		FacilityID:            e.FacilityID,
		PVSystemID:            e.PVSystemID,
		Month:                 e.Month,
		Year:                  e.Year,
		MonthlyConsumptionKWh: e.MonthlyConsumptionKWh,
		Evaluation:            e.Evaluation,
		Viable:                e.Viable,
		EvaluatedAt:           e.OccurredAt,
	}
}
