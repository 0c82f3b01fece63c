package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSimpleRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	limiter := newSimpleRateLimiter(2, time.Minute, clock)
	if limiter == nil {
		t.Fatalf("expected limiter")
	}

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first two requests to pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected third request to be rejected")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected independent key to pass")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected request to pass after window reset")
	}
}

func TestSimpleRateLimiterDisabled(t *testing.T) {
	if limiter := newSimpleRateLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	if limiter := newSimpleRateLimiter(10, 0, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", nil)
	req.RemoteAddr = "203.0.113.7:4411"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", nil)
	other.RemoteAddr = "203.0.113.8:4411"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected independent client to pass, got %d", rr.Code)
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	handler := RateLimit(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	}
}
