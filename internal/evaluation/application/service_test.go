package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/evaluation/domain"
	"github.com/wyfcoding/solarhealth/pkg/metrics"
)

func newService(m *metrics.Metrics, opts Options) *EvaluationService {
	return NewEvaluationService(m, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func cmd(rooms, equipment int, consumption, irradiance string) EvaluateCommand {
	return EvaluateCommand{
		NumRooms:              rooms,
		NumEquipment:          equipment,
		MonthlyConsumptionKWh: decimal.RequireFromString(consumption),
		IrradianceKWhM2:       decimal.RequireFromString(irradiance),
	}
}

func TestEvaluate(t *testing.T) {
	m := metrics.New("test")
	svc := newService(m, Options{})

	ev, err := svc.Evaluate(context.Background(), cmd(10, 5, "500", "4.5"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Capex.StringFixed(2) != "76440.00" {
		t.Fatalf("expected capex 76440.00, got %s", ev.Capex)
	}
	if got := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("false")); got != 1 {
		t.Fatalf("expected one non-viable evaluation, got %v", got)
	}
	if got := testutil.ToFloat64(m.EvaluationNeverPayback); got != 1 {
		t.Fatalf("expected one never-payback evaluation, got %v", got)
	}
}

func TestEvaluateRejectsNegative(t *testing.T) {
	svc := newService(nil, Options{})
	tests := []EvaluateCommand{
		cmd(-1, 0, "1", "1"),
		cmd(0, -2, "1", "1"),
		cmd(1, 1, "-0.01", "1"),
		cmd(1, 1, "1", "-4.5"),
	}
	for _, c := range tests {
		if _, err := svc.Evaluate(context.Background(), c); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", c, err)
		}
	}
}

func TestEvaluateBatchPreservesOrder(t *testing.T) {
	svc := newService(nil, Options{MaxBatchSize: 100, Concurrency: 4})

	var cmds []EvaluateCommand
	for rooms := 0; rooms < 40; rooms++ {
		cmds = append(cmds, cmd(rooms, rooms%3, "800", "120"))
	}
	got, err := svc.EvaluateBatch(context.Background(), cmds)
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}
	if len(got) != len(cmds) {
		t.Fatalf("expected %d results, got %d", len(cmds), len(got))
	}
	for i, c := range cmds {
		want := domain.Evaluate(c.input())
		if !got[i].NPV.Equal(want.NPV) || got[i].NumPanels != want.NumPanels {
			t.Fatalf("item %d out of order: got panels %d want %d", i, got[i].NumPanels, want.NumPanels)
		}
	}
}

func TestEvaluateBatchLimits(t *testing.T) {
	svc := newService(nil, Options{MaxBatchSize: 2})
	ctx := context.Background()

	_, err := svc.EvaluateBatch(ctx, []EvaluateCommand{cmd(1, 1, "1", "1"), cmd(1, 1, "1", "1"), cmd(1, 1, "1", "1")})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	_, err = svc.EvaluateBatch(ctx, []EvaluateCommand{cmd(1, 1, "1", "1"), cmd(-1, 1, "1", "1")})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
