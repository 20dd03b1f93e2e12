package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	"github.com/wyfcoding/solarhealth/pkg/metrics"
)

type memStore struct {
	messages []OutboxMessage
	failures map[string]int
}

func (s *memStore) FetchPending(_ context.Context, limit int) ([]OutboxMessage, error) {
	var out []OutboxMessage
	for _, m := range s.messages {
		if m.Status == StatusPending && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) MarkSent(_ context.Context, id string) error {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Status = StatusSent
		}
	}
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id string, _ error, maxAttempts int) error {
	s.failures[id]++
	for i := range s.messages {
		if s.messages[i].ID == id && s.failures[id] >= maxAttempts {
			s.messages[i].Status = StatusFailed
		}
	}
	return nil
}

type fakePublisher struct {
	failKey string
	sent    []string
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, _ []byte) error {
	if key == p.failKey {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func newMessage(t *testing.T, facilityID uint) OutboxMessage {
	t.Helper()
	msg, err := newOutboxMessage(domain.EvaluationCompletedEventType, "", "", &domain.EvaluationCompletedEvent{
		FacilityID:            facilityID,
		MonthlyConsumptionKWh: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("newOutboxMessage: %v", err)
	}
	msg.AggregateID = strconv.FormatUint(uint64(facilityID), 10)
	return *msg
}

func TestNewOutboxMessage(t *testing.T) {
	msg := newMessage(t, 7)
	if msg.ID == "" || msg.EventID == "" || msg.Status != StatusPending {
		t.Fatalf("unexpected message: %+v", msg)
	}
	var event domain.EvaluationCompletedEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		t.Fatalf("payload is not an event: %v", err)
	}
	if event.FacilityID != 7 {
		t.Fatalf("unexpected payload: %+v", event)
	}
}

func TestProcessOnce(t *testing.T) {
	store := &memStore{failures: map[string]int{}}
	store.messages = []OutboxMessage{newMessage(t, 1), newMessage(t, 2), newMessage(t, 3)}
	pub := &fakePublisher{failKey: "2"}
	m := metrics.New("test")
	relay := NewOutboxRelay(store, pub, RelayConfig{Topic: "evals", MaxAttempts: 2}, m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sent, err := relay.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if sent != 2 || len(pub.sent) != 2 || pub.sent[0] != "evals/1" {
		t.Fatalf("unexpected relay result: sent=%d %v", sent, pub.sent)
	}
	if got := testutil.ToFloat64(m.OutboxRelayedTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}

	// 第二次仍失败，达到上限后标记为 failed
	if _, err := relay.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if store.messages[1].Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", store.messages[1].Status)
	}
	if sent, _ := relay.ProcessOnce(context.Background()); sent != 0 {
		t.Fatalf("nothing left to send, got %d", sent)
	}
}

func TestFailureUpdate(t *testing.T) {
	cause := errors.New("broker unavailable")
	tests := []struct {
		name       string
		attempts   int
		max        int
		wantCount  int
		wantFailed bool
	}{
		{"first failure", 0, 3, 1, false},
		{"one before limit", 1, 3, 2, false},
		{"reaches limit", 2, 3, 3, true},
		{"single attempt allowed", 0, 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := failureUpdate(tt.attempts, tt.max, cause)
			if u["attempts"] != tt.wantCount {
				t.Errorf("attempts: expected %d, got %v", tt.wantCount, u["attempts"])
			}
			_, failed := u["status"]
			if failed != tt.wantFailed {
				t.Errorf("status set = %v, want %v (%v)", failed, tt.wantFailed, u)
			}
			if u["last_error"] != "broker unavailable" {
				t.Errorf("unexpected last_error %v", u["last_error"])
			}
		})
	}

	long := failureUpdate(0, 3, errors.New(strings.Repeat("x", 600)))
	if got := len(long["last_error"].(string)); got != 500 {
		t.Errorf("expected truncated reason of 500 bytes, got %d", got)
	}
}
