package dataloader

import "testing"

func TestCacheSingleSlot(t *testing.T) {
	c := NewCache()

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache should miss")
	}

	first := &LoadResult{Source: "first"}
	c.Put("a", first)
	if got, ok := c.Get("a"); !ok || got != first {
		t.Errorf("Get(a) = %v, %v", got, ok)
	}

	c.Put("b", &LoadResult{Source: "second"})
	if _, ok := c.Get("a"); ok {
		t.Error("old hash should be evicted by a new one")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("hits = %d misses = %d, want 1 and 2", hits, misses)
	}
}

func TestContentHash(t *testing.T) {
	if ContentHash([]byte("x")) == ContentHash([]byte("y")) {
		t.Error("different content should hash differently")
	}
	if ContentHash([]byte("x")) != ContentHash([]byte("x")) {
		t.Error("hash should be deterministic")
	}
}
