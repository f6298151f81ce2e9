package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewMonitoredAPI_Valid(t *testing.T) {
	a, err := NewMonitoredAPI("Payments", "https://ok.example/health", "get", 200, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" {
		t.Fatalf("expected id to be generated")
	}
	if a.HTTPMethod != "GET" {
		t.Fatalf("method not normalized: %q", a.HTTPMethod)
	}
	if !a.Active {
		t.Fatalf("new api should be active")
	}
	if a.CreatedAt.IsZero() || !a.CreatedAt.Equal(a.UpdatedAt) {
		t.Fatalf("timestamps wrong: created=%v updated=%v", a.CreatedAt, a.UpdatedAt)
	}
}

func TestNewMonitoredAPI_Invalid(t *testing.T) {
	cases := []struct {
		name, url, method string
		status, threshold int
		field             string
	}{
		{"", "https://x", "GET", 200, 0, "name"},
		{"   ", "https://x", "GET", 200, 0, "name"},
		{strings.Repeat("n", 101), "https://x", "GET", 200, 0, "name"},
		{"a", "", "GET", 200, 0, "url"},
		{"a", "ftp://x", "GET", 200, 0, "url"},
		{"a", "example.com", "GET", 200, 0, "url"},
		{"a", "https://x", "", 200, 0, "http_method"},
		{"a", "https://x", "TRACE", 200, 0, "http_method"},
		{"a", "https://x", "GET", 99, 0, "expected_status_code"},
		{"a", "https://x", "GET", 600, 0, "expected_status_code"},
		{"a", "https://x", "GET", 200, -1, "latency_threshold_ms"},
	}
	for _, c := range cases {
		_, err := NewMonitoredAPI(c.name, c.url, c.method, c.status, c.threshold)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%+v: want ErrValidation, got %v", c, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != c.field {
			t.Fatalf("%+v: want field %q, got %v", c, c.field, err)
		}
	}
}

func TestNewMonitoredAPI_Boundaries(t *testing.T) {
	if _, err := NewMonitoredAPI(strings.Repeat("n", 100), "http://x", "options", 100, 0); err != nil {
		t.Fatalf("100-char name, status 100, threshold 0 should pass: %v", err)
	}
	if _, err := NewMonitoredAPI("n", "http://x", "HEAD", 599, 0); err != nil {
		t.Fatalf("status 599 should pass: %v", err)
	}
}

func TestMonitoredAPI_Lifecycle(t *testing.T) {
	a, _ := NewMonitoredAPI("a", "https://x", "GET", 200, 100)
	before := a.UpdatedAt
	time.Sleep(2 * time.Millisecond)

	a.Deactivate()
	if a.Active || !a.UpdatedAt.After(before) {
		t.Fatalf("deactivate did not apply: %+v", a)
	}
	a.Activate()
	if !a.Active {
		t.Fatalf("activate did not apply")
	}
	if err := a.UpdateThreshold(-5); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative threshold should fail, got %v", err)
	}
	if a.LatencyThresholdMS != 100 {
		t.Fatalf("failed update must not change threshold, got %d", a.LatencyThresholdMS)
	}
	if err := a.UpdateThreshold(250); err != nil || a.LatencyThresholdMS != 250 {
		t.Fatalf("threshold update failed: %v %d", err, a.LatencyThresholdMS)
	}
}

func TestDuplicateURL_MatchesValidation(t *testing.T) {
	err := DuplicateURL("https://x")
	if !errors.Is(err, ErrDuplicateURL) || !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate error should match both sentinels: %v", err)
	}
}

func TestCheckResult_ExceededThreshold(t *testing.T) {
	r := SuccessResult("A", 200, 300)
	if r.ExceededThreshold(300) {
		t.Fatalf("latency == threshold must not exceed")
	}
	if !r.ExceededThreshold(299) {
		t.Fatalf("latency > threshold must exceed")
	}
	if r.ExceededThreshold(301) {
		t.Fatalf("latency < threshold must not exceed")
	}
}

func TestCheckResult_IsHealthy(t *testing.T) {
	cases := []struct {
		r    CheckResult
		want bool
	}{
		{SuccessResult("A", 200, 1), true},
		{SuccessResult("A", 299, 1), true},
		{SuccessResult("A", 300, 1), false},
		{SuccessResult("A", 199, 1), false},
		{FailureResult("A", 200, 1, "x"), false},
		{ErrorResult("A", "refused"), false},
	}
	for _, c := range cases {
		if got := c.r.IsHealthy(); got != c.want {
			t.Fatalf("IsHealthy(%+v)=%v want %v", c.r, got, c.want)
		}
	}
}

func TestErrorResult_ZeroesStatusAndLatency(t *testing.T) {
	r := ErrorResult("A", "connection refused")
	if r.Success || r.StatusCode != 0 || r.LatencyMS != 0 || r.ErrorMessage == "" {
		t.Fatalf("unexpected error result: %+v", r)
	}
	if r.ID == "" || r.CheckedAt.IsZero() {
		t.Fatalf("id and checked_at must be set: %+v", r)
	}
}

func TestDeriveStatus(t *testing.T) {
	if DeriveStatus(true, false) != StatusUp {
		t.Fatal("want UP")
	}
	if DeriveStatus(true, true) != StatusDegraded {
		t.Fatal("want DEGRADED")
	}
	if DeriveStatus(false, true) != StatusDown || DeriveStatus(false, false) != StatusDown {
		t.Fatal("want DOWN")
	}
	rec := HealthCheckRecord{Success: true, ExceededThreshold: true}
	if rec.Status() != StatusDegraded {
		t.Fatalf("record status wrong: %s", rec.Status())
	}
}
