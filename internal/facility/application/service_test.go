package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	evalapp "github.com/wyfcoding/solarhealth/internal/evaluation/application"
	"github.com/wyfcoding/solarhealth/internal/facility/domain"
	"github.com/wyfcoding/solarhealth/pkg/utils"
)

type memFacilities struct {
	facilities   []*domain.Facility
	consumptions []*domain.Consumption
	saveErr      error
}

func (m *memFacilities) List(_ context.Context, limit, offset int) ([]*domain.Facility, int64, error) {
	total := int64(len(m.facilities))
	if offset >= len(m.facilities) {
		return nil, total, nil
	}
	return m.facilities[offset:min(offset+limit, len(m.facilities))], total, nil
}

func (m *memFacilities) Get(_ context.Context, id uint) (*domain.Facility, error) {
	for _, f := range m.facilities {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, nil
}

func (m *memFacilities) Save(_ context.Context, f *domain.Facility) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	f.ID = uint(len(m.facilities) + 1)
	m.facilities = append(m.facilities, f)
	return nil
}

func (m *memFacilities) SaveConsumption(_ context.Context, c *domain.Consumption) error {
	c.ID = uint(len(m.consumptions) + 1)
	m.consumptions = append(m.consumptions, c)
	return nil
}

func (m *memFacilities) GetConsumption(_ context.Context, id uint) (*domain.Consumption, error) {
	for _, c := range m.consumptions {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

type memAssessments struct {
	systems []*domain.PVSystem
	results []*domain.FinancialResult
	err     error
}

func (m *memAssessments) SavePVSystem(_ context.Context, pv *domain.PVSystem) error {
	pv.ID = uint(len(m.systems) + 1)
	pv.CreatedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m.systems = append(m.systems, pv)
	return nil
}

func (m *memAssessments) SaveFinancialResult(_ context.Context, fr *domain.FinancialResult) error {
	if m.err != nil {
		return m.err
	}
	fr.ID = uint(len(m.results) + 1)
	m.results = append(m.results, fr)
	return nil
}

func (m *memAssessments) LatestPVSystem(_ context.Context, facilityID uint) (*domain.PVSystem, error) {
	for i := len(m.systems) - 1; i >= 0; i-- {
		if m.systems[i].FacilityID == facilityID {
			return m.systems[i], nil
		}
	}
	return nil, nil
}

type memReadModel struct {
	items map[uint]*domain.EvaluationSnapshot
	gets  int
}

func (m *memReadModel) Save(_ context.Context, s *domain.EvaluationSnapshot) error {
	m.items[s.FacilityID] = s
	return nil
}

func (m *memReadModel) Get(_ context.Context, facilityID uint) (*domain.EvaluationSnapshot, error) {
	m.gets++
	return m.items[facilityID], nil
}

type recordingPublisher struct{ events []*domain.EvaluationCompletedEvent }

func (p *recordingPublisher) PublishEvaluationCompleted(_ context.Context, e *domain.EvaluationCompletedEvent) error {
	p.events = append(p.events, e)
	return nil
}

type fakeTx struct{ rolledBack bool }

func (t *fakeTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		t.rolledBack = true
		return err
	}
	return nil
}

type fixedIrradiance map[[2]int]decimal.Decimal

func (f fixedIrradiance) Irradiance(_ context.Context, cityID uint, month int) (decimal.Decimal, bool, error) {
	v, ok := f[[2]int{int(cityID), month}]
	return v, ok, nil
}

type seqIDs struct{ n int64 }

func (s *seqIDs) NextID() int64 {
	s.n++
	return s.n
}

type fixture struct {
	svc         *FacilityService
	facilities  *memFacilities
	assessments *memAssessments
	readModel   *memReadModel
	publisher   *recordingPublisher
	tx          *fakeTx
}

func newFixture() *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		facilities:  &memFacilities{},
		assessments: &memAssessments{},
		readModel:   &memReadModel{items: map[uint]*domain.EvaluationSnapshot{}},
		publisher:   &recordingPublisher{},
		tx:          &fakeTx{},
	}
	irradiance := fixedIrradiance{{1, 3}: decimal.NewFromInt(150)}
	evaluator := evalapp.NewEvaluationService(nil, evalapp.Options{}, log)
	f.svc = NewFacilityService(f.facilities, f.assessments, f.readModel, f.publisher, f.tx,
		irradiance, evaluator, &seqIDs{}, decimal.RequireFromString("4.5"), nil, log)
	return f
}

func completeCommand(rooms, equipment, month int, kwh string) RegisterCompleteCommand {
	return RegisterCompleteCommand{
		RegisterFacilityCommand: RegisterFacilityCommand{
			Name: "IPS Norte", Type: "clinic", NumRooms: rooms, NumEquipment: equipment, CityID: 1,
		},
		Month:          month,
		Year:           2024,
		ConsumptionKWh: decimal.RequireFromString(kwh),
	}
}

func TestRegisterCompleteUsesMeasuredIrradiance(t *testing.T) {
	f := newFixture()
	res, err := f.svc.RegisterComplete(context.Background(), completeCommand(1, 0, 3, "10000"))
	if err != nil {
		t.Fatalf("RegisterComplete: %v", err)
	}
	if !res.IrradianceFound || !res.IrradianceKWhM2.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected measured irradiance, got %s found=%v", res.IrradianceKWhM2, res.IrradianceFound)
	}
	if res.Evaluation.NPV.StringFixed(2) != "2899.44" || res.Evaluation.PaybackYears.StringFixed(2) != "7.34" {
		t.Fatalf("unexpected evaluation: %+v", res.Evaluation)
	}
	if res.Facility.ID != 1 || res.Consumption.FacilityID != 1 || res.PVSystemID != 1 || res.FinancialResultID != 1 {
		t.Fatalf("unexpected ids: %+v", res)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.EventID != "1" || ev.FacilityID != 1 || ev.Viable != res.Viable {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if f.assessments.results[0].PVSystemID != 1 {
		t.Fatalf("financial result not linked to pv system: %+v", f.assessments.results[0])
	}
}

func TestRegisterCompleteDefaultsIrradiance(t *testing.T) {
	f := newFixture()
	res, err := f.svc.RegisterComplete(context.Background(), completeCommand(10, 5, 7, "500"))
	if err != nil {
		t.Fatalf("RegisterComplete: %v", err)
	}
	if res.IrradianceFound || res.IrradianceKWhM2.String() != "4.5" {
		t.Fatalf("expected default irradiance, got %s found=%v", res.IrradianceKWhM2, res.IrradianceFound)
	}
	if res.Evaluation.MonthlyEnergyGeneratedKWh.StringFixed(2) != "160.65" || res.Viable {
		t.Fatalf("unexpected evaluation: %+v viable=%v", res.Evaluation, res.Viable)
	}
}

func TestRegisterCompleteRollsBack(t *testing.T) {
	f := newFixture()
	f.assessments.err = errors.New("disk full")

	_, err := f.svc.RegisterComplete(context.Background(), completeCommand(1, 0, 3, "100"))
	if err == nil || !f.tx.rolledBack {
		t.Fatalf("expected rolled back failure, got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("no event expected on failure")
	}
}

func TestRegisterCompleteValidation(t *testing.T) {
	f := newFixture()
	for _, cmd := range []RegisterCompleteCommand{
		completeCommand(-1, 0, 3, "100"),
		completeCommand(1, 0, 13, "100"),
		completeCommand(1, 0, 3, "-1"),
	} {
		if _, err := f.svc.RegisterComplete(context.Background(), cmd); !IsInvalid(err) {
			t.Errorf("expected invalid error for %+v, got %v", cmd, err)
		}
	}
	if len(f.facilities.facilities) != 0 {
		t.Fatalf("invalid commands must not persist anything")
	}
}

func TestLatestEvaluationRebuildsFromDatabase(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.RegisterComplete(ctx, completeCommand(1, 0, 3, "10000"))
	if err != nil {
		t.Fatalf("RegisterComplete: %v", err)
	}

	snap, err := f.svc.LatestEvaluation(ctx, res.Facility.ID)
	if err != nil || snap == nil {
		t.Fatalf("LatestEvaluation: %v %v", snap, err)
	}
	if !snap.Evaluation.NPV.Equal(res.Evaluation.NPV) || snap.Month != 3 {
		t.Fatalf("rebuilt snapshot differs: %+v", snap)
	}
	if _, ok := f.readModel.items[res.Facility.ID]; !ok {
		t.Fatalf("expected read model refill")
	}

	// 第二次命中读模型
	if _, err := f.svc.LatestEvaluation(ctx, res.Facility.ID); err != nil {
		t.Fatalf("LatestEvaluation: %v", err)
	}
	if f.readModel.gets != 2 {
		t.Fatalf("expected 2 read model lookups, got %d", f.readModel.gets)
	}
}

func TestLatestEvaluationMissing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.LatestEvaluation(ctx, 42); !errors.Is(err, domain.ErrFacilityNotFound) {
		t.Fatalf("expected ErrFacilityNotFound, got %v", err)
	}

	fac, err := f.svc.RegisterFacility(ctx, RegisterFacilityCommand{Name: "IPS Sur", NumRooms: 2, CityID: 1})
	if err != nil {
		t.Fatalf("RegisterFacility: %v", err)
	}
	snap, err := f.svc.LatestEvaluation(ctx, fac.ID)
	if err != nil || snap != nil {
		t.Fatalf("expected no evaluation yet, got %v %v", snap, err)
	}
}

func TestListFacilities(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.svc.RegisterFacility(ctx, RegisterFacilityCommand{Name: "IPS", CityID: 1}); err != nil {
			t.Fatalf("RegisterFacility: %v", err)
		}
	}
	page := utils.NewPagination(2, 2)
	items, err := f.svc.ListFacilities(ctx, page)
	if err != nil {
		t.Fatalf("ListFacilities: %v", err)
	}
	if len(items) != 1 || page.Total != 3 || page.Pages != 2 {
		t.Fatalf("unexpected page: %d items, %+v", len(items), page)
	}
}

func TestProjectionSkipsStaleEvents(t *testing.T) {
	rm := &memReadModel{items: map[uint]*domain.EvaluationSnapshot{}}
	svc := NewEvaluationProjectionService(rm, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	newer := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.Apply(ctx, &domain.EvaluationCompletedEvent{FacilityID: 1, PVSystemID: 2, OccurredAt: newer}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := svc.Apply(ctx, &domain.EvaluationCompletedEvent{FacilityID: 1, PVSystemID: 1, OccurredAt: newer.Add(-time.Hour)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rm.items[1].PVSystemID != 2 {
		t.Fatalf("stale event overwrote projection: %+v", rm.items[1])
	}
}
