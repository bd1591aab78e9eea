package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}
	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Errorf("expected hit with v, got %q %v %v", v, ok, err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "short", "1", time.Second)
	_ = m.Set(ctx, "forever", "2", 0)

	now = now.Add(2 * time.Second)
	if _, ok, _ := m.Get(ctx, "short"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Error("expected entry without ttl to survive")
	}
}

func TestMemory_ExpiredDeleteKeepsFreshValue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "k", "stale", time.Second)
	now = now.Add(2 * time.Second)
	readAt := now

	// a writer refreshes the key between the expired read and the delete
	_ = m.Set(ctx, "k", "fresh", time.Minute)
	m.deleteIfExpired("k", readAt)

	v, ok, _ := m.Get(ctx, "k")
	if !ok || v != "fresh" {
		t.Errorf("expected fresh value to survive, got %q %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	m.deleteIfExpired("k", now)
	if _, ok := m.entries["k"]; ok {
		t.Error("expected expired entry to be deleted")
	}
}

func TestMemory_EvictExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "a", "1", time.Second)
	_ = m.Set(ctx, "b", "2", time.Hour)
	now = now.Add(time.Minute)
	m.evictExpired()

	if len(m.entries) != 1 {
		t.Errorf("expected 1 entry after eviction, got %d", len(m.entries))
	}
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "k", "v", 0)
	_ = m.Delete(ctx, "k")
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expected deleted key to miss")
	}
}
