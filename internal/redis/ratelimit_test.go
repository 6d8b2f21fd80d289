package redis

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  3,
		Window: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "ip:10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if !result.Allowed {
			t.Fatalf("request %d rejected within limit", i+1)
		}
	}

	result, err := limiter.Allow(ctx, "ip:10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("fourth request allowed over a limit of 3")
	}
	if result.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", result.Remaining)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  1,
		Window: time.Minute,
	})
	ctx := context.Background()

	if result, err := limiter.Allow(ctx, "ip:10.0.0.1"); err != nil || !result.Allowed {
		t.Fatalf("first key: allowed=%v err=%v", result, err)
	}
	if result, err := limiter.Allow(ctx, "ip:10.0.0.2"); err != nil || !result.Allowed {
		t.Fatalf("second key: allowed=%v err=%v", result, err)
	}
	if result, err := limiter.Allow(ctx, "ip:10.0.0.1"); err != nil || result.Allowed {
		t.Fatalf("first key second call: allowed=%v err=%v", result, err)
	}
}
