package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/solarhealth/pkg/metrics"
	"github.com/wyfcoding/solarhealth/pkg/mq"
)

// RelayConfig 投递参数
type RelayConfig struct {
	Topic       string
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// OutboxRelay 周期性地把 pending 消息投递到 Kafka
type OutboxRelay struct {
	store     OutboxStore
	publisher mq.Publisher
	cfg       RelayConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewOutboxRelay 创建投递器，m 可以为 nil
func NewOutboxRelay(store OutboxStore, publisher mq.Publisher, cfg RelayConfig, m *metrics.Metrics, logger *slog.Logger) *OutboxRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("component", "outbox_relay"),
	}
}

// Run 阻塞直到 ctx 取消
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started", "topic", r.cfg.Topic, "interval", r.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// ProcessOnce 投递一批消息，返回成功条数.
// 单条失败只记录，不中断本批次。
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	messages, err := r.store.FetchPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range messages {
		if err := r.publisher.Publish(ctx, r.cfg.Topic, msg.AggregateID, []byte(msg.Payload)); err != nil {
			r.count("failed")
			r.logger.WarnContext(ctx, "failed to relay outbox message", "id", msg.ID, "event_type", msg.EventType, "error", err)
			if markErr := r.store.MarkFailed(ctx, msg.ID, err, r.cfg.MaxAttempts); markErr != nil {
				return sent, markErr
			}
			continue
		}
		if err := r.store.MarkSent(ctx, msg.ID); err != nil {
			return sent, err
		}
		r.count("sent")
		sent++
	}
	return sent, nil
}

func (r *OutboxRelay) count(result string) {
	if r.metrics != nil {
		r.metrics.OutboxRelayedTotal.WithLabelValues(result).Inc()
	}
}
