package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/referencedata/domain"
	"github.com/wyfcoding/solarhealth/pkg/utils"
)

type fakeDepartments struct{ items []*domain.Department }

func (f *fakeDepartments) List(context.Context) ([]*domain.Department, error) { return f.items, nil }

func (f *fakeDepartments) GetByID(_ context.Context, id uint) (*domain.Department, error) {
	for _, d := range f.items {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

type fakeCities struct{ items []*domain.City }

func (f *fakeCities) List(_ context.Context, departmentID uint, limit, offset int) ([]*domain.City, int64, error) {
	var out []*domain.City
	for _, c := range f.items {
		if departmentID == 0 || c.DepartmentID == departmentID {
			out = append(out, c)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := min(offset+limit, len(out))
	return out[offset:end], total, nil
}

func (f *fakeCities) GetByID(_ context.Context, id uint) (*domain.City, error) {
	for _, c := range f.items {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

type key struct {
	city  uint
	month int
}

type fakeIrradiance struct {
	data  map[key]decimal.Decimal
	reads int
	err   error
}

func (f *fakeIrradiance) Get(_ context.Context, cityID uint, month int) (*domain.Irradiance, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key{cityID, month}]
	if !ok {
		return nil, nil
	}
	return &domain.Irradiance{CityID: cityID, Month: month, KWhM2: v}, nil
}

func (f *fakeIrradiance) ListByCity(_ context.Context, cityID uint) ([]*domain.Irradiance, error) {
	var out []*domain.Irradiance
	for k, v := range f.data {
		if k.city == cityID {
			out = append(out, &domain.Irradiance{CityID: k.city, Month: k.month, KWhM2: v})
		}
	}
	return out, nil
}

func (f *fakeIrradiance) Upsert(_ context.Context, irr *domain.Irradiance) error {
	f.data[key{irr.CityID, irr.Month}] = irr.KWhM2
	return nil
}

type fakeCache struct {
	data    map[key]domain.IrradianceLookup
	deleted int
}

func (f *fakeCache) Get(_ context.Context, cityID uint, month int) (*domain.IrradianceLookup, error) {
	v, ok := f.data[key{cityID, month}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (f *fakeCache) Set(_ context.Context, cityID uint, month int, l domain.IrradianceLookup) error {
	f.data[key{cityID, month}] = l
	return nil
}

func (f *fakeCache) Delete(_ context.Context, cityID uint, month int) error {
	f.deleted++
	delete(f.data, key{cityID, month})
	return nil
}

func newService(irr *fakeIrradiance, cache domain.IrradianceCache) *ReferenceDataService {
	deps := &fakeDepartments{items: []*domain.Department{{ID: 1, Name: "Antioquia"}, {ID: 2, Name: "Cundinamarca"}}}
	cities := &fakeCities{items: []*domain.City{
		{ID: 10, Name: "Medellín", DepartmentID: 1},
		{ID: 11, Name: "Envigado", DepartmentID: 1},
		{ID: 20, Name: "Bogotá", DepartmentID: 2},
	}}
	return NewReferenceDataService(deps, cities, irr, cache, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIrradianceCacheAside(t *testing.T) {
	repo := &fakeIrradiance{data: map[key]decimal.Decimal{{10, 1}: decimal.RequireFromString("150.25")}}
	cache := &fakeCache{data: map[key]domain.IrradianceLookup{}}
	svc := newService(repo, cache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, found, err := svc.Irradiance(ctx, 10, 1)
		if err != nil || !found || v.String() != "150.25" {
			t.Fatalf("expected 150.25, got %s %v %v", v, found, err)
		}
	}
	if repo.reads != 1 {
		t.Fatalf("expected a single repository read, got %d", repo.reads)
	}

	// 没有实测值的结果同样被缓存
	for i := 0; i < 2; i++ {
		if _, found, err := svc.Irradiance(ctx, 20, 5); err != nil || found {
			t.Fatalf("expected not found, got %v %v", found, err)
		}
	}
	if repo.reads != 2 {
		t.Fatalf("expected negative lookup to be cached, got %d reads", repo.reads)
	}
}

func TestIrradianceWithoutCache(t *testing.T) {
	repo := &fakeIrradiance{err: errors.New("db down")}
	svc := newService(repo, nil)
	if _, _, err := svc.Irradiance(context.Background(), 10, 1); err == nil {
		t.Fatal("expected repository error")
	}
}

func TestSetIrradianceInvalidatesCache(t *testing.T) {
	repo := &fakeIrradiance{data: map[key]decimal.Decimal{}}
	cache := &fakeCache{data: map[key]domain.IrradianceLookup{{10, 3}: {Found: false}}}
	svc := newService(repo, cache)
	ctx := context.Background()

	irr, err := svc.SetIrradiance(ctx, 10, 3, decimal.RequireFromString("4.567"))
	if err != nil {
		t.Fatalf("SetIrradiance: %v", err)
	}
	if irr.KWhM2.String() != "4.57" {
		t.Fatalf("expected value rounded to 4.57, got %s", irr.KWhM2)
	}
	if cache.deleted != 1 {
		t.Fatalf("expected cache invalidation, got %d", cache.deleted)
	}
	v, found, _ := svc.Irradiance(ctx, 10, 3)
	if !found || v.String() != "4.57" {
		t.Fatalf("expected fresh value after invalidation, got %s %v", v, found)
	}

	if _, err := svc.SetIrradiance(ctx, 10, 3, decimal.RequireFromString("-1")); !errors.Is(err, ErrNegativeIrradiance) {
		t.Fatalf("expected ErrNegativeIrradiance, got %v", err)
	}
	if _, err := svc.SetIrradiance(ctx, 10, 13, decimal.NewFromInt(1)); !errors.Is(err, domain.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestListCities(t *testing.T) {
	svc := newService(&fakeIrradiance{data: map[key]decimal.Decimal{}}, nil)
	page := utils.NewPagination(1, 1)
	cities, err := svc.ListCities(context.Background(), 1, page)
	if err != nil {
		t.Fatalf("ListCities: %v", err)
	}
	if len(cities) != 1 || page.Total != 2 || page.Pages != 2 {
		t.Fatalf("unexpected page: %d cities, %+v", len(cities), page)
	}
}

func TestGetDepartmentMissing(t *testing.T) {
	svc := newService(&fakeIrradiance{data: map[key]decimal.Decimal{}}, nil)
	dep, err := svc.GetDepartment(context.Background(), 99)
	if err != nil || dep != nil {
		t.Fatalf("expected (nil, nil), got %v %v", dep, err)
	}
}
