package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusCollector_ExposesCounters(t *testing.T) {
	c := NewPrometheusCollector()
	c.ProbeCompleted("UP", 120)
	c.ProbeCompleted("DOWN", 0)
	c.EventPublished("health-check", "success")
	c.HistoryRecorded("health_check", "saved")
	c.CacheLookup("active", "hit")
	c.HealthCheckRun("ok")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`apiwatcher_probes_total{status="UP"} 1`,
		`apiwatcher_probes_total{status="DOWN"} 1`,
		`apiwatcher_events_published_total{outcome="success",topic="health-check"} 1`,
		`apiwatcher_history_records_total{kind="health_check",outcome="saved"} 1`,
		`apiwatcher_registry_cache_total{query="active",result="hit"} 1`,
		`apiwatcher_health_check_runs_total{outcome="ok"} 1`,
		`apiwatcher_probe_latency_ms_count 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNewPrometheusCollector_Independent(t *testing.T) {
	// a second collector must not panic on duplicate registration
	_ = NewPrometheusCollector()
	_ = NewPrometheusCollector()
}
