package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRateLimitRepository_AllowUntilLimit(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl:login"})

	ctx := context.Background()
	now := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	for i := 0; i < 3; i++ {
		decision, err := repo.Allow(ctx, "203.0.113.7", 3, window, now)
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
		if decision.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 2-i, decision.Remaining)
		}
	}

	decision, err := repo.Allow(ctx, "203.0.113.7", 3, window, now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected fourth request to be rejected")
	}
	if !decision.ResetAt.Equal(now.Add(window)) {
		t.Fatalf("expected reset at %v, got %v", now.Add(window), decision.ResetAt)
	}

	members, err := server.ZMembers("rl:login:203.0.113.7")
	if err != nil {
		t.Fatalf("ZMembers returned error: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("rejected request must not be recorded, got %d members", len(members))
	}
	if ttl := server.TTL("rl:login:203.0.113.7"); ttl <= 0 || ttl > window {
		t.Fatalf("expected ttl within (0, %v], got %v", window, ttl)
	}
}

func TestRateLimitRepository_WindowSlides(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	ctx := context.Background()
	now := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	if _, err := repo.Allow(ctx, "ip", 1, time.Minute, now); err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}

	if decision, _ := repo.Allow(ctx, "ip", 1, time.Minute, now.Add(30*time.Second)); decision.Allowed {
		t.Fatal("expected request inside window to be rejected")
	}

	decision, err := repo.Allow(ctx, "ip", 1, time.Minute, now.Add(61*time.Second))
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected request after window to be allowed")
	}
}

func TestRateLimitRepository_KeysAreIndependent(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl"})

	ctx := context.Background()
	now := time.Now()

	if d, _ := repo.Allow(ctx, "a", 1, time.Minute, now); !d.Allowed {
		t.Fatal("expected first key to be allowed")
	}
	if d, _ := repo.Allow(ctx, "b", 1, time.Minute, now); !d.Allowed {
		t.Fatal("expected second key to be allowed")
	}
}

func TestRateLimitRepository_RejectsBadArguments(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	if _, err := repo.Allow(context.Background(), "ip", 1, 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := repo.Allow(context.Background(), "ip", 0, time.Minute, time.Now()); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestRateLimitRepository_ConcurrentBurstNeverExceedsLimit(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl"})

	ctx := context.Background()
	now := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	const limit = 5

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
		errs    []error
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := repo.Allow(ctx, "burst", limit, time.Minute, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if decision.Allowed {
				allowed++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("Allow returned errors: %v", errs)
	}
	if allowed != limit {
		t.Fatalf("expected exactly %d admitted requests, got %d", limit, allowed)
	}

	members, err := server.ZMembers("rl:burst")
	if err != nil {
		t.Fatalf("ZMembers returned error: %v", err)
	}
	if len(members) != limit {
		t.Fatalf("expected rejected requests to be rolled back, got %d members", len(members))
	}
}
