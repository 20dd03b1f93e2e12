package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/solarhealth/internal/evaluation/application"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := application.NewEvaluationService(nil, application.Options{MaxBatchSize: 2, Concurrency: 2},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	NewEvaluationHandler(svc, decimal.RequireFromString("4.5")).RegisterRoutes(r)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestEvaluateDefaultIrradiance(t *testing.T) {
	rec := post(newRouter(), "/api/v1/evaluations", `{"num_rooms":10,"num_equipment":5,"monthly_consumption_kwh":500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	for _, want := range []string{`"irradiance_used":4.50`, `"payback_years":999.00`, `"monthly_energy_generated_kwh":160.65`, `"viable":false`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
}

func TestEvaluateStringDecimals(t *testing.T) {
	rec := post(newRouter(), "/api/v1/evaluations",
		`{"num_rooms":1,"num_equipment":0,"monthly_consumption_kwh":"10000","irradiance_kwh_m2":"150"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Evaluation map[string]json.Number `json:"evaluation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Evaluation["npv"] != "2899.44" || resp.Evaluation["payback_years"] != "7.34" {
		t.Fatalf("unexpected evaluation: %v", resp.Evaluation)
	}
}

func TestEvaluateValidation(t *testing.T) {
	r := newRouter()
	tests := []struct {
		name string
		body string
	}{
		{"missing consumption", `{"num_rooms":1}`},
		{"negative rooms", `{"num_rooms":-1,"monthly_consumption_kwh":1}`},
		{"negative consumption", `{"num_rooms":1,"monthly_consumption_kwh":-5}`},
		{"malformed", `{"num_rooms":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(r, "/api/v1/evaluations", tt.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestEvaluateBatch(t *testing.T) {
	r := newRouter()
	rec := post(r, "/api/v1/evaluations/batch",
		`[{"num_rooms":0,"monthly_consumption_kwh":500},{"num_rooms":1,"monthly_consumption_kwh":10000,"irradiance_kwh_m2":150}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Results []struct {
			Evaluation map[string]json.Number `json:"evaluation"`
			Viable     bool                   `json:"viable"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Evaluation["return_ratio_percent"] != "0.00" {
		t.Fatalf("expected zero ratio for zero capex, got %s", resp.Results[0].Evaluation["return_ratio_percent"])
	}

	rec = post(r, "/api/v1/evaluations/batch",
		`[{"monthly_consumption_kwh":1},{"monthly_consumption_kwh":1},{"monthly_consumption_kwh":1}]`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
