package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func getTestMetrics() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

func getGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestRecordToggle(t *testing.T) {
	m := getTestMetrics()

	m.RecordToggle(ToggleAccepted)
	m.RecordToggle(ToggleAccepted)
	m.RecordToggle(ToggleDenied)

	if got := testutil.ToFloat64(m.TogglesTotal.WithLabelValues(ToggleAccepted)); got != 2 {
		t.Fatalf("expected 2 accepted toggles, got %v", got)
	}
	if got := testutil.ToFloat64(m.TogglesTotal.WithLabelValues(ToggleDenied)); got != 1 {
		t.Fatalf("expected 1 denied toggle, got %v", got)
	}
}

func TestRecordWrite(t *testing.T) {
	m := getTestMetrics()

	m.RecordWrite(nil)
	m.RecordWrite(errors.New("timeout"))

	if got := testutil.ToFloat64(m.WritesTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok write, got %v", got)
	}
	if got := testutil.ToFloat64(m.WritesTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed write, got %v", got)
	}
}

func TestControllerGauge(t *testing.T) {
	m := getTestMetrics()

	m.ControllerOpened()
	m.ControllerOpened()
	m.ControllerClosed()

	if got := getGaugeValue(t, m.ActiveControllers); got != 1 {
		t.Fatalf("expected 1 active controller, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordToggle(ToggleAccepted)
	m.RecordWrite(nil)
	m.RecordConfirmation()
	m.RecordStaleObservation()
	m.ControllerOpened()
	m.ControllerClosed()
	m.WSConnected()
	m.WSDisconnected()
	m.ConversationStarted()
	m.ConversationEnded("expired")
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := getTestMetrics()

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/sessions/:session_id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/sessions/:session_id", "204"))
	if got != 1 {
		t.Fatalf("expected one request recorded for route template, got %v", got)
	}
}
