package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/redis"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddlewareNilLimiterPassesThrough(t *testing.T) {
	handler := RateLimitMiddleware(nil, zap.NewNop(), IPKeyFunc)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/correspondence", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRateLimitMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewFromAddr(context.Background(), mr.Addr(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	limiter := redis.NewRateLimiter(client, zap.NewNop(), redis.RateLimitConfig{
		Limit:  2,
		Window: time.Minute,
	})
	handler := RateLimitMiddleware(limiter, zap.NewNop(), IPKeyFunc)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/correspondence", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/correspondence", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/v1/correspondence", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d", rec.Code)
	}
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := IPKeyFunc(req); got != "ip:10.0.0.1:1234" {
		t.Errorf("key = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := IPKeyFunc(req); got != "ip:203.0.113.7" {
		t.Errorf("forwarded key = %q", got)
	}
}
