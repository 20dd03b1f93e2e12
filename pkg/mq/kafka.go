// Package mq 提供 Kafka producer/consumer 实现，生产端带熔断，消费端失败转死信
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/solarhealth/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers        []string
	GroupID        string
	SessionTimeout int
	MaxRetries     int
	// 重试退避（毫秒）
	RetryBackoff int
}

// Publisher 消息发布接口
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) *KafkaProducer {
	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoffMin := time.Duration(cfg.RetryBackoff) * time.Millisecond
	if backoffMin <= 0 {
		backoffMin = 100 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            maxAttempts,
		WriteBackoffMin:        backoffMin,
		WriteBackoffMax:        backoffMin * 10,
	}

	logger.Info(context.Background(), "Kafka producer created", "brokers", cfg.Brokers)
	return newProducer(writer)
}

func newProducer(w messageWriter) *KafkaProducer {
	return &KafkaProducer{
		writer: w,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "kafka-producer",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn(context.Background(), "Circuit breaker state changed",
					"name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Publish 发送单条原始消息；熔断打开时直接返回 gobreaker.ErrOpenState
func (kp *KafkaProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	_, err := kp.breaker.Execute(func() (any, error) {
		return nil, kp.writer.WriteMessages(ctx, kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		})
	})
	if err != nil {
		logger.Error(ctx, "Failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	logger.Debug(ctx, "Kafka message sent", "topic", topic, "key", key)
	return nil
}

// SendMessage 序列化为 JSON 后发送
func (kp *KafkaProducer) SendMessage(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return kp.Publish(ctx, topic, key, data)
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// Message Kafka 消息结构
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Time      time.Time
}

// UnmarshalPayload 将消息值解析为 JSON
func (m *Message) UnmarshalPayload(dest any) error {
	return json.Unmarshal(m.Value, dest)
}

// Handler 消息处理函数
type Handler func(ctx context.Context, msg *Message) error

// KafkaConsumer Kafka 消费者
type KafkaConsumer struct {
	reader *kafka.Reader
	dlq    *DeadLetterQueue
}

// NewConsumer 创建 Kafka 消费者
func NewConsumer(cfg KafkaConfig, topic string, dlq *DeadLetterQueue) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.GroupID,
		SessionTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		StartOffset:    kafka.FirstOffset,
		MaxBytes:       10e6,
	})

	logger.Info(context.Background(), "Kafka consumer created",
		"brokers", cfg.Brokers, "topic", topic, "group_id", cfg.GroupID)
	return &KafkaConsumer{reader: reader, dlq: dlq}
}

// Run 循环拉取并处理消息，处理后提交偏移量；处理失败的消息转入死信队列
func (kc *KafkaConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		km, err := kc.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		msg := &Message{
			Topic:     km.Topic,
			Partition: km.Partition,
			Offset:    km.Offset,
			Key:       string(km.Key),
			Value:     km.Value,
			Time:      km.Time,
		}
		if err := handle(ctx, msg); err != nil {
			logger.Error(ctx, "Failed to handle Kafka message",
				"topic", msg.Topic, "offset", msg.Offset, "error", err)
			if kc.dlq != nil {
				if dlqErr := kc.dlq.Send(ctx, msg, "handler failed", err); dlqErr != nil {
					return fmt.Errorf("failed to dead-letter message: %w", dlqErr)
				}
			}
		}

		if err := kc.reader.CommitMessages(ctx, km); err != nil {
			return fmt.Errorf("failed to commit offset: %w", err)
		}
	}
}

// Close 关闭消费者
func (kc *KafkaConsumer) Close() error {
	return kc.reader.Close()
}

// DeadLetterQueue 死信队列处理
type DeadLetterQueue struct {
	producer Publisher
	topic    string
}

// NewDeadLetterQueue 创建死信队列
func NewDeadLetterQueue(producer Publisher, topic string) *DeadLetterQueue {
	return &DeadLetterQueue{producer: producer, topic: topic}
}

type deadLetter struct {
	OriginalTopic  string    `json:"original_topic"`
	OriginalKey    string    `json:"original_key"`
	OriginalValue  string    `json:"original_value"`
	OriginalOffset int64     `json:"original_offset"`
	FailureReason  string    `json:"failure_reason"`
	FailureError   string    `json:"failure_error"`
	FailedAt       time.Time `json:"failed_at"`
}

// Send 发送消息到死信队列
func (dlq *DeadLetterQueue) Send(ctx context.Context, original *Message, reason string, cause error) error {
	data, err := json.Marshal(deadLetter{
		OriginalTopic:  original.Topic,
		OriginalKey:    original.Key,
		OriginalValue:  string(original.Value),
		OriginalOffset: original.Offset,
		FailureReason:  reason,
		FailureError:   cause.Error(),
		FailedAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return dlq.producer.Publish(ctx, dlq.topic, original.Key, data)
}
