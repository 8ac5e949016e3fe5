package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "ip-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, err := l.Allow(ctx, "ip-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if ok {
		t.Fatalf("third request in window should be denied")
	}

	// Different key has its own window.
	if ok, _ := l.Allow(ctx, "ip-2"); !ok {
		t.Fatalf("other key should be allowed")
	}

	// Window expiry resets the count.
	now = now.Add(2 * time.Minute)
	if ok, _ := l.Allow(ctx, "ip-1"); !ok {
		t.Fatalf("request after window reset should be allowed")
	}
}

func TestRedisLimiter(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "ip-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, err := l.Allow(ctx, "ip-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if ok {
		t.Fatalf("third request in window should be denied")
	}

	srv.FastForward(2 * time.Minute)
	if ok, _ := l.Allow(ctx, "ip-1"); !ok {
		t.Fatalf("request after expiry should be allowed")
	}
}

func TestNewLimiterFallsBackToMemory(t *testing.T) {
	l, err := NewLimiter("", 10, time.Minute)
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	if _, ok := l.(*MemoryLimiter); !ok {
		t.Fatalf("NewLimiter(\"\") = %T, want *MemoryLimiter", l)
	}
}

func TestNewLimiterRejectsBadURL(t *testing.T) {
	if _, err := NewLimiter("::not-a-url::", 10, time.Minute); err == nil {
		t.Fatalf("NewLimiter() should reject malformed redis url")
	}
}
