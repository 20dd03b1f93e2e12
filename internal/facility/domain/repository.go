package domain

import "context"

// FacilityRepository 机构与用电记录仓储，未找到时返回 (nil, nil)
type FacilityRepository interface {
	List(ctx context.Context, limit, offset int) ([]*Facility, int64, error)
	Get(ctx context.Context, id uint) (*Facility, error)
	Save(ctx context.Context, f *Facility) error
	SaveConsumption(ctx context.Context, c *Consumption) error
	GetConsumption(ctx context.Context, id uint) (*Consumption, error)
}

// AssessmentRepository 光伏系统与财务结果仓储
type AssessmentRepository interface {
	SavePVSystem(ctx context.Context, pv *PVSystem) error
	SaveFinancialResult(ctx context.Context, fr *FinancialResult) error
	// LatestPVSystem 机构最近一次测算的光伏系统，没有时返回 (nil, nil)
	LatestPVSystem(ctx context.Context, facilityID uint) (*PVSystem, error)
}

// EvaluationReadRepository 最近测算结果读模型
type EvaluationReadRepository interface {
	Save(ctx context.Context, s *EvaluationSnapshot) error
	Get(ctx context.Context, facilityID uint) (*EvaluationSnapshot, error)
}

// EventPublisher 领域事件发布，ctx 中携带事务时与业务数据同事务写入
type EventPublisher interface {
	PublishEvaluationCompleted(ctx context.Context, event *EvaluationCompletedEvent) error
}

// Transactor 在同一数据库事务中执行 fn
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
