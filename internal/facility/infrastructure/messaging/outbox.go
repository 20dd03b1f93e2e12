// Package messaging 机构事件的 outbox 写入与投递
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	"github.com/wyfcoding/solarhealth/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 消息状态
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// OutboxMessage outbox 表
type OutboxMessage struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	EventID     string    `gorm:"column:event_id;type:varchar(36);index"`
	EventType   string    `gorm:"column:event_type;type:varchar(100);index"`
	AggregateID string    `gorm:"column:aggregate_id;type:varchar(36)"`
	Payload     string    `gorm:"column:payload;type:text"`
	Status      string    `gorm:"column:status;type:varchar(20);index;default:'pending'"`
	Attempts    int       `gorm:"column:attempts;not null;default:0"`
	LastError   string    `gorm:"column:last_error;type:varchar(500)"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "facility_outbox_messages"
}

// OutboxEventPublisher 实现 domain.EventPublisher，把事件写入 ctx 中事务所在的 outbox 表
type OutboxEventPublisher struct {
	db *gorm.DB
}

// NewOutboxEventPublisher 创建 OutboxEventPublisher
func NewOutboxEventPublisher(db *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: db}
}

// PublishEvaluationCompleted 写入测算完成事件
func (p *OutboxEventPublisher) PublishEvaluationCompleted(ctx context.Context, event *domain.EvaluationCompletedEvent) error {
	msg, err := newOutboxMessage(domain.EvaluationCompletedEventType, event.EventID, fmt.Sprint(event.FacilityID), event)
	if err != nil {
		return err
	}
	return db.Conn(ctx, p.db).Create(msg).Error
}

func newOutboxMessage(eventType, eventID, aggregateID string, event any) (*OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}
	return &OutboxMessage{
		ID:          uuid.NewString(),
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     string(payload),
		Status:      StatusPending,
	}, nil
}

// OutboxStore outbox 表的读写
type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) error
}

// GormOutboxStore OutboxStore 的 GORM 实现
type GormOutboxStore struct {
	db *gorm.DB
}

// NewGormOutboxStore 创建存储
func NewGormOutboxStore(db *gorm.DB) *GormOutboxStore {
	return &GormOutboxStore{db: db}
}

func (s *GormOutboxStore) FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error) {
	var messages []OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *GormOutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": StatusSent, "last_error": ""}).Error
}

// MarkFailed 记录失败次数，达到 maxAttempts 后不再投递
func (s *GormOutboxStore) MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg OutboxMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "attempts", "status").
			Where("id = ?", id).
			Take(&msg).Error
		if err != nil {
			return fmt.Errorf("failed to load outbox message %s: %w", id, err)
		}
		return tx.Model(&OutboxMessage{}).
			Where("id = ?", id).
			Updates(failureUpdate(msg.Attempts, maxAttempts, cause)).Error
	})
}

// failureUpdate 本次失败后的列值，状态在 Go 侧计算，不依赖数据库对 SET 子句的求值顺序
func failureUpdate(attempts, maxAttempts int, cause error) map[string]any {
	reason := cause.Error()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	attempts++
	update := map[string]any{"attempts": attempts, "last_error": reason}
	if attempts >= maxAttempts {
		update["status"] = StatusFailed
	}
	return update
}

// CleanupSent 删除早于 before 的已发送消息
func (s *GormOutboxStore) CleanupSent(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("status = ? AND updated_at < ?", StatusSent, before).Delete(&OutboxMessage{})
	return res.RowsAffected, res.Error
}
