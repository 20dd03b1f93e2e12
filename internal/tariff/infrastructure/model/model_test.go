package model

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wyfcoding/solarhealth/internal/tariff/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func profileJSON(fill string) string {
	row := "[" + strings.TrimSuffix(strings.Repeat(fill+",", 24), ",") + "]"
	return "[" + strings.TrimSuffix(strings.Repeat(row+",", 7), ",") + "]"
}

func TestLoadConsumptionArtifact(t *testing.T) {
	path := writeFile(t, "consumption.json", `{
		"model": {"features": ["lag_1d", "is_peak_hour"], "intercept": 2,
		          "coefficients": {"lag_1d": 0.5, "is_peak_hour": 10}},
		"history": {"profile": `+profileJSON("null")+`, "mean": 40, "daily_std": 5}
	}`)

	art, err := LoadConsumptionArtifact(path)
	if err != nil {
		t.Fatalf("LoadConsumptionArtifact: %v", err)
	}
	if !math.IsNaN(art.History.Profile[3][5]) || art.History.Similar(3, 5) != 40 {
		t.Fatalf("null profile entries should fall back to the mean")
	}

	ts := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)
	f := domain.NewFeatureBuilder(art.History).Build(domain.PointInput{Timestamp: ts, TemperatureC: 20})
	// 2 + 0.5*40 + 10*1
	if got := art.Model.Predict(f); got != 32 {
		t.Fatalf("expected 32, got %v", got)
	}
}

func TestLoadConsumptionArtifactErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{`},
		{"missing coefficient", `{"model": {"features": ["hour"], "coefficients": {}}, "history": {"profile": ` + profileJSON("1") + `}}`},
		{"short profile", `{"model": {"features": ["hour"], "coefficients": {"hour": 1}}, "history": {"profile": [[1]]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConsumptionArtifact(writeFile(t, "m.json", tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := LoadConsumptionArtifact(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLogisticModel(t *testing.T) {
	path := writeFile(t, "peak.json", `{"intercept": -1, "coefficients": [0.1, 0, 0, 0]}`)
	m, err := LoadPeakShavingModel(path)
	if err != nil {
		t.Fatalf("LoadPeakShavingModel: %v", err)
	}
	if m.Threshold != 0.5 {
		t.Fatalf("expected default threshold, got %v", m.Threshold)
	}

	// z = -1 + 0.1*10 = 0
	peak, p := m.Classify(domain.PeakInput{Hour: 10})
	if !peak || p != 0.5 {
		t.Fatalf("expected boundary probability 0.5 classified as peak, got %v %v", peak, p)
	}
	peak, p = m.Classify(domain.PeakInput{Hour: 0})
	if peak || math.Abs(p-1/(1+math.E)) > 1e-12 {
		t.Fatalf("unexpected classification %v %v", peak, p)
	}

	bad := writeFile(t, "bad.json", `{"coefficients": [1, 2]}`)
	if _, err := LoadPeakShavingModel(bad); err == nil {
		t.Fatal("expected error for wrong coefficient count")
	}
}

func TestShippedArtifacts(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "..", "configs", "models")
	art, err := LoadConsumptionArtifact(filepath.Join(dir, "consumption.json"))
	if err != nil {
		t.Fatalf("consumption artifact: %v", err)
	}
	if len(art.Model.Features) == 0 || art.History.Mean <= 0 {
		t.Fatalf("unexpected artifact %+v", art.Model)
	}
	if _, err := LoadPeakShavingModel(filepath.Join(dir, "peak_shaving.json")); err != nil {
		t.Fatalf("peak shaving artifact: %v", err)
	}
}
