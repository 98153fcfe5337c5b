package cache

import (
	"fmt"
	"testing"
	"time"
)

func testCache(t *testing.T, cfg Config) (*Cache, *time.Time) {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := testCache(t, Config{})

	c.Set("k", "value", TierHashtag)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Get() should hit for a fresh entry")
	}
	if got != "value" {
		t.Errorf("Get() = %v, want %q", got, "value")
	}
}

func TestCache_ExpiredIsMiss(t *testing.T) {
	c, now := testCache(t, Config{TrendingTTL: 15 * time.Minute})

	c.Set("k", "value", TierTrending)
	*now = now.Add(16 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("Get() must treat an expired entry as a miss")
	}
}

func TestCache_TierTTLs(t *testing.T) {
	c, now := testCache(t, Config{
		HashtagTTL:  time.Hour,
		TrendingTTL: 15 * time.Minute,
	})

	c.Set("hashtag", 1, TierHashtag)
	c.Set("trending", 2, TierTrending)

	*now = now.Add(20 * time.Minute)

	if _, ok := c.Get("hashtag"); !ok {
		t.Error("hashtag entry should still be fresh at 20m")
	}
	if _, ok := c.Get("trending"); ok {
		t.Error("trending entry should be expired at 20m")
	}
}

func TestCache_GetStale(t *testing.T) {
	c, now := testCache(t, Config{TrendingTTL: 15 * time.Minute, StaleWindow: time.Hour})

	c.Set("k", "stale-value", TierTrending)
	*now = now.Add(30 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be expired for Get")
	}
	got, ok := c.GetStale("k")
	if !ok {
		t.Fatal("GetStale() should return entry within stale window")
	}
	if got != "stale-value" {
		t.Errorf("GetStale() = %v, want %q", got, "stale-value")
	}
}

func TestCache_StaleWindowBound(t *testing.T) {
	c, now := testCache(t, Config{TrendingTTL: 15 * time.Minute, StaleWindow: time.Hour})

	c.Set("k", "value", TierTrending)

	// 15m TTL + 1h stale window = мусор после 1h15m
	*now = now.Add(2 * time.Hour)

	if _, ok := c.GetStale("k"); ok {
		t.Error("GetStale() must refuse entries past the stale window")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c, _ := testCache(t, Config{MaxEntries: 3})

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, TierHashtag)
	}

	// трогаем k0, чтобы k1 стал least recently used
	c.Get("k0")
	c.Set("k3", 3, TierHashtag)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted by LRU pressure")
	}
	if _, ok := c.Get("k0"); !ok {
		t.Error("recently used k0 should survive eviction")
	}

	if st := c.Stats(); st.Evictions != 1 {
		t.Errorf("Stats().Evictions = %d, want 1", st.Evictions)
	}
}

func TestCache_OverwriteRefreshesTTL(t *testing.T) {
	c, now := testCache(t, Config{TrendingTTL: 15 * time.Minute})

	c.Set("k", "old", TierTrending)
	*now = now.Add(10 * time.Minute)
	c.Set("k", "new", TierTrending)
	*now = now.Add(10 * time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("overwritten entry should be fresh 10m after refresh")
	}
	if got != "new" {
		t.Errorf("Get() = %v, want %q (last writer wins)", got, "new")
	}
}

func TestCache_Stats(t *testing.T) {
	c, _ := testCache(t, Config{})

	c.Set("k", 1, TierHashtag)
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	st := c.Stats()
	if st.Hits != 2 {
		t.Errorf("Stats().Hits = %d, want 2", st.Hits)
	}
	if st.Misses != 1 {
		t.Errorf("Stats().Misses = %d, want 1", st.Misses)
	}
	if st.Entries != 1 {
		t.Errorf("Stats().Entries = %d, want 1", st.Entries)
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := testCache(t, Config{})

	c.Set("k", 1, TierHashtag)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Error("Get() should miss after Delete")
	}
	if _, ok := c.GetStale("k"); ok {
		t.Error("GetStale() should miss after Delete")
	}
}
