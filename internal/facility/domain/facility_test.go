package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	evaluation "github.com/wyfcoding/solarhealth/internal/evaluation/domain"
)

func TestNewFacility(t *testing.T) {
	tests := []struct {
		name    string
		fname   string
		rooms   int
		equip   int
		city    uint
		wantErr bool
	}{
		{"ok", " Clínica Norte ", 10, 5, 1, false},
		{"empty name", "  ", 10, 5, 1, true},
		{"negative rooms", "IPS", -1, 5, 1, true},
		{"negative equipment", "IPS", 1, -5, 1, true},
		{"no city", "IPS", 1, 5, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFacility(tt.fname, "clinic", tt.rooms, tt.equip, tt.city)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFacility) {
					t.Fatalf("expected ErrInvalidFacility, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Name != "Clínica Norte" {
				t.Fatalf("expected trimmed name, got %q", f.Name)
			}
		})
	}
}

func TestConsumptionValidate(t *testing.T) {
	ok := Consumption{Month: 3, Year: 2024, KWh: decimal.NewFromInt(500)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range []Consumption{
		{Month: 0, Year: 2024},
		{Month: 13, Year: 2024},
		{Month: 1, Year: 10},
		{Month: 1, Year: 2024, KWh: decimal.NewFromInt(-1)},
	} {
		if err := c.Validate(); !errors.Is(err, ErrInvalidFacility) {
			t.Errorf("%+v: expected ErrInvalidFacility, got %v", c, err)
		}
	}
}

func TestNewAssessment(t *testing.T) {
	ev := evaluation.Evaluate(evaluation.Input{
		NumRooms:              10,
		NumEquipment:          5,
		MonthlyConsumptionKWh: decimal.NewFromInt(500),
		IrradianceKWhM2:       decimal.RequireFromString("4.5"),
	})
	pv, fr := NewAssessment(7, 9, &ev)
	if pv.FacilityID != 7 || pv.ConsumptionID != 9 || pv.NumPanels != ev.NumPanels {
		t.Fatalf("unexpected pv system: %+v", pv)
	}
	if !pv.MonthlyEnergyKWh.Equal(ev.MonthlyEnergyGeneratedKWh) || !pv.IrradianceKWhM2.Equal(ev.IrradianceUsed) {
		t.Fatalf("unexpected pv energy: %+v", pv)
	}
	if !fr.InitialInvestment.Equal(ev.Capex) || !fr.PaybackYears.Equal(ev.PaybackYears) {
		t.Fatalf("unexpected financial result: %+v", fr)
	}
}
