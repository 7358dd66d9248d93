package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("jti-1", "user-1", time.Second)
	val, ok := c.Get("jti-1")
	if !ok || val != "user-1" {
		t.Fatalf("expected user-1, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New[bool]()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("jti-1", true, time.Minute)
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("jti-1"); ok {
		t.Fatalf("expected expired key to return false")
	}
	if n := c.Purge(); n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c := New[int]()
	c.Set("key1", 1, time.Second)
	c.Delete("key1")
	if _, ok := c.Get("key1"); ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[string]()
	c.Set("revoked:1", "a", time.Second)
	c.Set("revoked:2", "b", time.Second)
	c.Set("session:1", "s1", time.Second)
	c.Invalidate("revoked:")
	_, ok1 := c.Get("revoked:1")
	_, ok2 := c.Get("revoked:2")
	_, ok3 := c.Get("session:1")
	if ok1 || ok2 {
		t.Fatalf("expected revoked keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected session:1 to still exist")
	}
}
