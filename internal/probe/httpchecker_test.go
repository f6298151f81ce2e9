package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/apiwatcher/internal/domain"
)

func testAPI(t *testing.T, url string, expected int) *domain.MonitoredAPI {
	t.Helper()
	api, err := domain.NewMonitoredAPI("svc", url, "GET", expected, 1000)
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	return api
}

func TestHTTPChecker_ExpectedStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	api := testAPI(t, s.URL, 200)
	out := NewHTTPChecker(2*time.Second).Probe(context.Background(), api)
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if out.APIID != api.ID {
		t.Fatalf("want api id %s, got %s", api.ID, out.APIID)
	}
	if out.ErrorMessage != "" {
		t.Fatalf("want no error message, got %q", out.ErrorMessage)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %d", out.LatencyMS)
	}
}

func TestHTTPChecker_UnexpectedStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second).Probe(context.Background(), testAPI(t, s.URL, 200))
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.StatusCode != 500 {
		t.Fatalf("want status 500, got %d", out.StatusCode)
	}
	if out.ErrorMessage != "expected 200, got 500" {
		t.Fatalf("unexpected message %q", out.ErrorMessage)
	}
}

func TestHTTPChecker_NonStandardExpectedStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second).Probe(context.Background(), testAPI(t, s.URL, 418))
	if !out.Success || out.StatusCode != 418 {
		t.Fatalf("want success with 418, got %+v", out)
	}
	if out.IsHealthy() {
		t.Fatalf("418 is a success but not healthy")
	}
}

func TestHTTPChecker_TimeoutSetsStatusZero(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPChecker(50*time.Millisecond).Probe(context.Background(), testAPI(t, s.URL, 200))
	if out.Success {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 || out.LatencyMS != 0 {
		t.Fatalf("want status and latency 0 on transport error, got %+v", out)
	}
	if out.ErrorMessage == "" {
		t.Fatalf("want non-empty error message")
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	out := NewHTTPChecker(time.Second).Probe(context.Background(), testAPI(t, url, 200))
	if out.Success || out.StatusCode != 0 {
		t.Fatalf("want transport failure, got %+v", out)
	}
	if !strings.Contains(out.ErrorMessage, "refused") {
		t.Fatalf("want refused in message, got %q", out.ErrorMessage)
	}
}

func TestHTTPChecker_MethodSelection(t *testing.T) {
	methods := make(chan string, 2)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods <- r.Method
		w.WriteHeader(200)
	}))
	defer s.Close()

	api, err := domain.NewMonitoredAPI("svc", s.URL, "head", 200, 1000)
	if err != nil {
		t.Fatal(err)
	}

	chk := NewHTTPChecker(time.Second)
	chk.Probe(context.Background(), api)
	if got := <-methods; got != http.MethodGet {
		t.Fatalf("default probe should use GET, got %s", got)
	}

	chk.HonorMethod = true
	chk.Probe(context.Background(), api)
	if got := <-methods; got != http.MethodHead {
		t.Fatalf("honor method should use HEAD, got %s", got)
	}
}

func TestHTTPChecker_Fetch(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(405)
			return
		}
		w.WriteHeader(201)
	}))
	defer s.Close()

	resp := NewHTTPChecker(time.Second).Fetch(context.Background(), http.MethodPost, s.URL)
	if resp.Err != nil || resp.StatusCode != 201 {
		t.Fatalf("want 201, got %+v", resp)
	}

	resp = NewHTTPChecker(time.Second).Fetch(context.Background(), "GET", "://bad")
	if resp.Err == nil {
		t.Fatalf("want error for malformed url")
	}
}

func TestExtractHost(t *testing.T) {
	cases := map[string]string{
		"https://example.com/health": "example.com",
		"http://10.0.0.1:8080/x":     "10.0.0.1",
		"not a url":                  "not a url",
	}
	for in, want := range cases {
		if got := extractHost(in); got != want {
			t.Errorf("extractHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckDNS_Literals(t *testing.T) {
	if s := CheckDNS(context.Background(), "127.0.0.1"); s.Class != DNSResolves {
		t.Fatalf("ip literal should resolve, got %s", s.Class)
	}
	if s := CheckDNS(context.Background(), "https://x"); s.Class != DNSInvalidName {
		t.Fatalf("scheme should be invalid, got %s", s.Class)
	}
	if s := CheckDNS(context.Background(), "  "); s.Class != DNSInvalidName {
		t.Fatalf("blank should be invalid, got %s", s.Class)
	}
}
