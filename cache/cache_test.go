package cache

import (
	"testing"
	"time"
)

func TestSetThenGetRoundTrips(t *testing.T) {
	c, err := New[string](100, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	c.Set("query { allUsers { id } }", "COMPILED")
	c.store.Wait()

	got, ok := c.Get("query { allUsers { id } }")
	if !ok || got != "COMPILED" {
		t.Fatalf("Get = (%q, %v), want (COMPILED, true)", got, ok)
	}
}

func TestGetMissesUnknownKey(t *testing.T) {
	c, err := New[string](100, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	if _, ok := c.Get("missing"); ok {
		t.Errorf("expected miss for unset key")
	}
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c, err := New[string](0, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	c.Set("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Errorf("disabled cache should never hit")
	}
	if c.Stats().Enabled {
		t.Errorf("disabled cache reported Enabled = true")
	}
}

func TestStatsReportsConfiguredCapacityAndTTL(t *testing.T) {
	c, err := New[int](50, 2*time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	stats := c.Stats()
	if stats.Capacity != 50 || stats.TTL != 2*time.Minute || !stats.Enabled {
		t.Errorf("Stats() = %+v, unexpected", stats)
	}
}
