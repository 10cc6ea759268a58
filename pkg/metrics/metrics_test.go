package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg, "test")

	m.ObserveOrder("created", 12*time.Millisecond)
	m.ObserveOrder("created", 3*time.Millisecond)
	m.ObserveOrder("insufficient_stock", time.Millisecond)

	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("created")); got != 2 {
		t.Fatalf("created: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("insufficient_stock")); got != 1 {
		t.Fatalf("insufficient_stock: want=1 got=%v", got)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`orders_created_total{outcome="created",service="test"} 2`,
		`order_create_duration_ms_count{service="test"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s:\n%s", want, body)
		}
	}
}
