package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCache_SetGetLen(t *testing.T) {
	c := NewCache[string, int]()
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_TTLExpiration(t *testing.T) {
	clock := newClock()
	c := NewCache[string, string](
		WithDefaultTTL[string, string](time.Minute),
		WithClock[string, string](clock.Now),
	)
	defer c.Close()

	c.Set("web1", "completed")
	c.SetWithTTL("web2", "failed", 0)

	clock.Advance(59 * time.Second)
	_, ok := c.Get("web1")
	assert.True(t, ok, "item should still be live before the TTL")

	clock.Advance(2 * time.Second)
	_, ok = c.Get("web1")
	assert.False(t, ok, "item should be expired after the TTL")
	assert.Equal(t, 1, c.Len(), "expired item removed lazily by Get")

	v, ok := c.Get("web2")
	require.True(t, ok, "zero TTL never expires")
	assert.Equal(t, "failed", v)
}

func TestCache_NegativeTTLDeletes(t *testing.T) {
	c := NewCache[string, int]()
	defer c.Close()

	c.Set("k", 1)
	c.SetWithTTL("k", 2, -time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_DeleteExpired(t *testing.T) {
	clock := newClock()
	c := NewCache[int, int](WithClock[int, int](clock.Now))
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.SetWithTTL(i, i, time.Duration(i+1)*time.Second)
	}
	clock.Advance(3 * time.Second)
	assert.Equal(t, 2, c.DeleteExpired())
	assert.Equal(t, 3, c.Len())
}

func TestCache_Range(t *testing.T) {
	clock := newClock()
	c := NewCache[string, int](WithClock[string, int](clock.Now))
	defer c.Close()

	c.Set("keep", 1)
	c.SetWithTTL("gone", 2, time.Second)
	clock.Advance(2 * time.Second)

	seen := map[string]int{}
	c.Range(func(k string, v int) bool {
		seen[k] = v
		c.Delete(k)
		return true
	})
	assert.Equal(t, map[string]int{"keep": 1}, seen)
}

func TestCache_Janitor(t *testing.T) {
	c := NewCache[string, int](
		WithDefaultTTL[string, int](5*time.Millisecond),
		WithJanitorInterval[string, int](5*time.Millisecond),
	)
	defer c.Close()

	c.Set("x", 1)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	c.Close()
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache[string, int]()
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("host-%d", i%5)
			for j := 0; j < 100; j++ {
				c.Set(key, j)
				c.Get(key)
				if j%10 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 5)
}
