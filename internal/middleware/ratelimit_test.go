package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/valuetrainer/internal/model"
)

func newFormRequest(method, remoteAddr string) *http.Request {
	req := httptest.NewRequest(method, "/login", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestAuthFormRateLimit_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		AuthRate:        1,
		AuthBurst:       5,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.AuthFormMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newFormRequest(http.MethodPost, "192.0.2.1:1234"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestAuthFormRateLimit_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		AuthRate:        1,
		AuthBurst:       2,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.AuthFormMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newFormRequest(http.MethodPost, "192.0.2.2:1234"))
	}

	// 送信元ポートが異なっても同一IPとして扱う
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newFormRequest(http.MethodPost, "192.0.2.2:5678"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	retrySeconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After header should be a number, got %q", resp.Header.Get("Retry-After"))
	}
	if retrySeconds < 1 {
		t.Errorf("Retry-After = %d, should be at least 1", retrySeconds)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeRateLimitExceeded {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimitExceeded)
	}
}

func TestAuthFormRateLimit_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.AuthFormMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newFormRequest(http.MethodPost, "192.0.2.3:1234"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newFormRequest(http.MethodPost, "192.0.2.3:1234"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request from same IP: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newFormRequest(http.MethodPost, "192.0.2.4:1234"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

func TestAuthFormRateLimit_SafeMethodsAreNotLimited(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.AuthFormMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newFormRequest(http.MethodGet, "192.0.2.5:1234"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("GET %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount = %d, want 0 (GET must not create entries)", rl.LimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		AuthRate:        2,
		AuthBurst:       5,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer rl.Stop()

	handler := rl.AuthFormMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newFormRequest(http.MethodPost, "192.0.2.6:1234"))

	if rl.LimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLはCleanupIntervalの2倍（100ms）
	time.Sleep(250 * time.Millisecond)

	if count := rl.LimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(30)

	if cfg.AuthRate != 0.5 {
		t.Errorf("AuthRate = %f, want 0.5", cfg.AuthRate)
	}
	if cfg.AuthBurst != 30 {
		t.Errorf("AuthBurst = %d, want 30", cfg.AuthBurst)
	}
	if cfg.CleanupInterval <= 0 {
		t.Error("CleanupInterval should be positive")
	}

	def := DefaultRateLimiterConfig()
	if def.AuthBurst != 10 {
		t.Errorf("default AuthBurst = %d, want 10", def.AuthBurst)
	}
}

func TestAuthFormRateLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		AuthRate:        1,
		AuthBurst:       2,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.AuthFormMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	limited := 0
	for i := 0; i < 10; i++ {
		req := newFormRequest(http.MethodPost, "192.0.2.7:1234")
		req.Header.Set("X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
		req.Header.Set("X-Real-IP", "10.0.1."+strconv.Itoa(i))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}

	if limited != 8 {
		t.Errorf("limited = %d, want 8 (header rotation must not create new buckets)", limited)
	}
	if rl.LimiterCount() != 1 {
		t.Errorf("LimiterCount = %d, want 1", rl.LimiterCount())
	}
}

func TestRateLimiter_ClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"192.0.2.0/24", "2001:db8::1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	rl := NewRateLimiter(RateLimiterConfig{
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Minute,
		TrustedProxies:  trusted,
	})
	defer rl.Stop()

	tests := []struct {
		name         string
		remoteAddr   string
		forwardedFor []string
		want         string
	}{
		{"direct client", "203.0.113.5:1234", nil, "203.0.113.5"},
		{"untrusted peer header ignored", "203.0.113.5:1234", []string{"10.0.0.1"}, "203.0.113.5"},
		{"trusted proxy", "192.0.2.10:1234", []string{"198.51.100.7"}, "198.51.100.7"},
		{"client-supplied prefix ignored", "192.0.2.10:1234", []string{"10.0.0.1, 198.51.100.7"}, "198.51.100.7"},
		{"chained trusted proxies", "192.0.2.10:1234", []string{"198.51.100.7, 192.0.2.20"}, "198.51.100.7"},
		{"multiple header lines", "192.0.2.10:1234", []string{"10.0.0.1", "198.51.100.8"}, "198.51.100.8"},
		{"garbage stops the walk", "192.0.2.10:1234", []string{"198.51.100.7, bogus"}, "192.0.2.10"},
		{"trusted proxy without header", "192.0.2.10:1234", nil, "192.0.2.10"},
		{"trusted single IPv6", "[2001:db8::1]:443", []string{"198.51.100.9"}, "198.51.100.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newFormRequest(http.MethodPost, tt.remoteAddr)
			for _, v := range tt.forwardedFor {
				req.Header.Add("X-Forwarded-For", v)
			}
			if got := rl.clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTrustedProxies_InvalidEntry(t *testing.T) {
	for _, raw := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := ParseTrustedProxies([]string{raw}); err == nil {
			t.Errorf("ParseTrustedProxies(%q) should fail", raw)
		}
	}

	nets, err := ParseTrustedProxies([]string{"", " 10.0.0.0/8 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nets) != 1 {
		t.Errorf("len = %d, want 1", len(nets))
	}
}
