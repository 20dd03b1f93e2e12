package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

type fakeWriter struct {
	err  error
	sent []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w)

	if err := p.SendMessage(context.Background(), "topic", "k1", map[string]int{"n": 1}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(w.sent) != 1 || string(w.sent[0].Key) != "k1" || w.sent[0].Topic != "topic" {
		t.Fatalf("unexpected messages: %+v", w.sent)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := p.Publish(ctx, "t", "k", nil); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	err := p.Publish(ctx, "t", "k", nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
}

type recordingPublisher struct {
	topic string
	value []byte
}

func (r *recordingPublisher) Publish(_ context.Context, topic, _ string, value []byte) error {
	r.topic, r.value = topic, value
	return nil
}

func TestDeadLetterQueue(t *testing.T) {
	pub := &recordingPublisher{}
	dlq := NewDeadLetterQueue(pub, "dlq")
	msg := &Message{Topic: "orig", Key: "k", Value: []byte(`{"a":1}`), Offset: 42}

	if err := dlq.Send(context.Background(), msg, "handler failed", errors.New("bad payload")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pub.topic != "dlq" {
		t.Fatalf("expected dlq topic, got %s", pub.topic)
	}
	var dl deadLetter
	if err := json.Unmarshal(pub.value, &dl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dl.OriginalOffset != 42 || dl.FailureError != "bad payload" {
		t.Fatalf("unexpected dead letter: %+v", dl)
	}
}
