package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterAndExpose(t *testing.T) {
	m := New("test")
	if err := m.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	m.EvaluationsTotal.WithLabelValues("true").Inc()
	m.ObserveHTTP("POST", "/api/v1/evaluations", 200, 15*time.Millisecond)

	if got := testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("true")); got != 1 {
		t.Fatalf("expected 1 evaluation, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"solarhealth_evaluations_total", "solarhealth_http_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}
