package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	id, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, err := s.Authenticated(ctx, id); err != nil || ok {
		t.Fatalf("new session authenticated = %v, %v", ok, err)
	}

	if err := s.SetFlash(ctx, id, "ユーザー名またはパスワードが正しくありません"); err != nil {
		t.Fatal(err)
	}
	if msg, _ := s.Flash(ctx, id); msg != "ユーザー名またはパスワードが正しくありません" {
		t.Errorf("flash = %q", msg)
	}
	if msg, _ := s.Flash(ctx, id); msg != "" {
		t.Errorf("flash not cleared: %q", msg)
	}

	if err := s.SetAuthenticated(ctx, id, true); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Authenticated(ctx, id); !ok {
		t.Error("SetAuthenticated did not stick")
	}

	if err := s.Destroy(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Authenticated(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("destroyed session = %v", err)
	}
	if err := s.SetFlash(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreSweepsAbandonedSessions(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if _, err := s.Create(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 50 {
		t.Fatalf("Len = %d", s.Len())
	}

	// Nobody reads the old ids again; the next write clears them out.
	now = now.Add(2 * time.Minute)
	keep, _ := s.Create(ctx)
	if s.Len() != 1 {
		t.Errorf("Len after sweep = %d, want 1", s.Len())
	}
	if _, err := s.Authenticated(ctx, keep); err != nil {
		t.Errorf("live session swept: %v", err)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	id, _ := s.Create(ctx)
	now = now.Add(30 * time.Second)
	if _, err := s.Authenticated(ctx, id); err != nil {
		t.Fatalf("session expired early: %v", err)
	}
	// Reads do not extend the session; writes do.
	s.SetAuthenticated(ctx, id, true)
	now = now.Add(59 * time.Second)
	if ok, err := s.Authenticated(ctx, id); err != nil || !ok {
		t.Fatalf("write did not refresh ttl: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := s.Authenticated(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expiry, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expired entry kept: %d", s.Len())
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("NSTYLE_TEST_REDIS")
	if addr == "" {
		t.Skip("NSTYLE_TEST_REDIS not set")
	}
	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := NewRedisStore(ctx, RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected ping failure")
	}
	if _, err := NewRedisStore(ctx, RedisConfig{}); err == nil {
		t.Fatal("expected error without address")
	}
}
