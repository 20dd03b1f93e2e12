package mysql

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPVSystemModelToDomain(t *testing.T) {
	m := &PVSystemModel{
		ID:                  3,
		FacilityID:          1,
		ConsumptionID:       2,
		IrradianceKWhM2:     "4.50",
		NumPanels:           52,
		InstalledCapacityKW: "26.00",
		MonthlyEnergyKWh:    "160.65",
	}
	pv, err := m.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if !pv.MonthlyEnergyKWh.Equal(decimal.RequireFromString("160.65")) || pv.NumPanels != 52 {
		t.Fatalf("unexpected pv system: %+v", pv)
	}

	m.InstalledCapacityKW = "n/a"
	if _, err := m.toDomain(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMoneyFormatting(t *testing.T) {
	if got := money(decimal.RequireFromString("4.5")); got != "4.50" {
		t.Fatalf("expected 4.50, got %s", got)
	}
}
