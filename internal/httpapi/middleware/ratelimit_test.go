package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimit_AllowsThenBlocks(t *testing.T) {
	h := RateLimit(60, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("want 200 got %d", rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 429 {
		t.Fatalf("want 429 got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Fatalf("want Retry-After=1, got %q", rr.Header().Get("Retry-After"))
	}

	time.Sleep(1100 * time.Millisecond)
	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, req)
	if rr2.Code != 200 {
		t.Fatalf("want 200 after refill got %d", rr2.Code)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	h := RateLimit(60, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	a := httptest.NewRequest("GET", "/", nil)
	a.RemoteAddr = "1.1.1.1:1000"
	b := httptest.NewRequest("GET", "/", nil)
	b.RemoteAddr = "2.2.2.2:1000"

	for _, req := range []*http.Request{a, b} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s: want 200 got %d", req.RemoteAddr, rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, a)
	if rr.Code != 429 {
		t.Fatalf("second request from same client: want 429 got %d", rr.Code)
	}
}

func TestLimiter_RetryAfterAndEviction(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(0.1, 1, time.Minute) // one token per 10s
	l.now = clock.now

	if ok, _ := l.allow("a"); !ok {
		t.Fatal("first request should pass")
	}
	ok, wait := l.allow("a")
	if ok {
		t.Fatal("second request should be limited")
	}
	if wait != 10*time.Second {
		t.Fatalf("want wait 10s, got %s", wait)
	}

	clock.advance(2 * time.Minute)
	if ok, _ := l.allow("b"); !ok {
		t.Fatal("new client should pass")
	}
	if n := l.size(); n != 1 {
		t.Fatalf("idle bucket should be evicted, have %d buckets", n)
	}
}

func TestLimiter_RejectedRequestsDoNotQueue(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(0.1, 1, time.Minute)
	l.now = clock.now

	if ok, _ := l.allow("a"); !ok {
		t.Fatal("first request should pass")
	}
	for i := 0; i < 5; i++ {
		if ok, _ := l.allow("a"); ok {
			t.Fatalf("request %d should be limited", i+2)
		}
	}
	clock.advance(5 * time.Second)
	if _, wait := l.allow("a"); wait != 5*time.Second {
		t.Fatalf("rejections must not push the refill out: want 5s, got %s", wait)
	}
	clock.advance(5 * time.Second)
	if ok, _ := l.allow("a"); !ok {
		t.Fatal("token should have refilled after 10s")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("got %q", got)
	}
}
