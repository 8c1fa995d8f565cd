package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock はテスト用の時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, size int, ttl time.Duration) (*TTLCache[int], *fakeClock) {
	t.Helper()
	c, err := New[int](size, ttl)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

func TestNew_InvalidSize_ReturnsError(t *testing.T) {
	if _, err := New[int](0, time.Minute); err == nil {
		t.Fatal("size 0 should be rejected")
	}
}

func TestTTLCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(t, 8, time.Minute)

	c.Set("feeds", 3)
	got, ok := c.Get("feeds")
	if !ok || got != 3 {
		t.Errorf("Get(feeds) = (%d, %v), want (3, true)", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}
}

func TestTTLCache_DefaultTTLExpires(t *testing.T) {
	c, clock := newTestCache(t, 8, time.Minute)

	c.Set("counters", 10)
	clock.Advance(59 * time.Second)
	if _, ok := c.Get("counters"); !ok {
		t.Fatal("value should still be valid before TTL")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("counters"); ok {
		t.Error("value should expire exactly at TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired key should be removed on access, Len = %d", c.Len())
	}
}

func TestTTLCache_PerKeyTTL(t *testing.T) {
	c, clock := newTestCache(t, 8, time.Minute)

	c.SetWithTTL("short", 1, 10*time.Second)
	c.SetWithTTL("long", 2, time.Hour)
	c.SetWithTTL("forever", 3, 0)

	clock.Advance(2 * time.Minute)

	if _, ok := c.Get("short"); ok {
		t.Error("short TTL key should have expired")
	}
	if v, ok := c.Get("long"); !ok || v != 2 {
		t.Errorf("long TTL key = (%d, %v), want (2, true)", v, ok)
	}
	if v, ok := c.Get("forever"); !ok || v != 3 {
		t.Errorf("no-TTL key = (%d, %v), want (3, true)", v, ok)
	}
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t, 8, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key should not be returned")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Clear should invalidate every key")
	}
}

func TestTTLCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used key should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used key should survive eviction")
	}
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 64, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("key", n)
				c.Get("key")
				if j%10 == 0 {
					c.Clear()
				}
			}
		}(i)
	}
	wg.Wait()
}

// TestTTLCache_ExpiredGetKeepsConcurrentSet は期限切れの検出後に登録された値が
// Getによって削除されないことを検証する。
func TestTTLCache_ExpiredGetKeepsConcurrentSet(t *testing.T) {
	c, clock := newTestCache(t, 8, time.Minute)
	c.Set("feeds", 1)
	clock.Advance(2 * time.Minute)

	// 期限切れの判定に使う時刻の取得時に、別の呼び出しが新しい値を登録する
	injected := false
	c.now = func() time.Time {
		if !injected {
			injected = true
			c.Set("feeds", 2)
		}
		return clock.Now()
	}

	got, ok := c.Get("feeds")
	if !ok || got != 2 {
		t.Errorf("Get() = (%d, %v), want (2, true)", got, ok)
	}
	if got, ok := c.Get("feeds"); !ok || got != 2 {
		t.Errorf("再取得した値 = (%d, %v), want (2, true)", got, ok)
	}
}
