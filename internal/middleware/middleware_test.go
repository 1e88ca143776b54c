package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"sheger-walk-admin/internal/logger"
)

func TestRateLimiter_AllowsUpToRate(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	clock := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		remaining, ok := rl.Allow("10.0.0.1")
		if !ok {
			t.Fatalf("Request %d should be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("Request %d: expected %d remaining, got %d", i+1, 2-i, remaining)
		}
	}
	if _, ok := rl.Allow("10.0.0.1"); ok {
		t.Error("Fourth request should be rejected")
	}
	if _, ok := rl.Allow("10.0.0.2"); !ok {
		t.Error("Other clients keep their own bucket")
	}

	clock = clock.Add(20 * time.Second)
	if _, ok := rl.Allow("10.0.0.1"); !ok {
		t.Error("A third of the window should refill one token")
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	clock := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	rl.Allow("10.0.0.1")

	clock = clock.Add(2 * time.Hour)
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.clients) != 0 {
		t.Errorf("Expected idle client to be evicted, got %d", len(rl.clients))
	}
}

func TestRateLimitMiddleware_Headers(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Second)
	defer rl.Stop()

	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("GET", "/challenges", nil)
		req.Header.Set("X-Forwarded-For", "196.188.1.1, 10.0.0.1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != want {
			t.Fatalf("Request %d: expected status %d, got %d", i+1, want, rr.Code)
		}
		if want == http.StatusTooManyRequests {
			if got := rr.Header().Get("X-RateLimit-Limit"); got != "1" {
				t.Errorf("Expected X-RateLimit-Limit 1, got %q", got)
			}
			if got := rr.Header().Get("Retry-After"); got != "30" {
				t.Errorf("Expected Retry-After 30, got %q", got)
			}
		}
	}
}

func TestGetClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "196.188.1.1, 10.0.0.1"}, "127.0.0.1:1234", "196.188.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "196.188.2.2"}, "127.0.0.1:1234", "196.188.2.2"},
		{"remote addr", nil, "127.0.0.1:1234", "127.0.0.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientKey(req); got != tt.want {
				t.Errorf("GetClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(color.Output)

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/providers/p1", nil))

	line := buf.String()
	if !strings.Contains(line, "DELETE") || !strings.Contains(line, "/providers/p1") || !strings.Contains(line, "[404]") {
		t.Errorf("Unexpected log line %q", line)
	}
}

func TestTracingMiddleware_PassesStatus(t *testing.T) {
	h := TracingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/dashboard", nil))

	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", rr.Code)
	}
}
