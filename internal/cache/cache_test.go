package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/types"
)

func review(score int) *types.StructuredReview {
	return &types.StructuredReview{OverallScore: score}
}

func TestMakeKey_Deterministic(t *testing.T) {
	k1 := MakeKey("hash", "digest")
	k2 := MakeKey("hash", "digest")
	k3 := MakeKey("hash", "other")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestGetPut(t *testing.T) {
	c := New(4, time.Minute)

	assert.Nil(t, c.Get("missing"))
	c.Put("a", review(80))
	got := c.Get("a")
	require.NotNil(t, got)
	assert.Equal(t, 80, got.OverallScore)

	// Overwrite.
	c.Put("a", review(90))
	assert.Equal(t, 90, c.Get("a").OverallScore)
	assert.Equal(t, 1, c.Len())
}

func TestLRUEviction(t *testing.T) {
	c := New(2, time.Minute)
	c.Put("a", review(1))
	c.Put("b", review(2))

	// Touch a so b becomes the eviction victim.
	require.NotNil(t, c.Get("a"))
	c.Put("c", review(3))

	assert.NotNil(t, c.Get("a"))
	assert.Nil(t, c.Get("b"), "least recently used entry evicted")
	assert.NotNil(t, c.Get("c"))
}

func TestTTLExpiry(t *testing.T) {
	c := New(4, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("a", review(1))
	require.NotNil(t, c.Get("a"))

	// Advance past the TTL: the entry must never be returned stale.
	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Get("a"))
	assert.Equal(t, 0, c.Len())
}

func TestInvalidateAndClear(t *testing.T) {
	c := New(8, time.Minute)
	for i := 0; i < 4; i++ {
		c.Put(Key(fmt.Sprintf("k%d", i)), review(i))
	}

	removed := c.Invalidate(func(k Key) bool { return k == "k1" || k == "k3" })
	assert.Equal(t, 2, removed)
	assert.Nil(t, c.Get("k1"))
	assert.NotNil(t, c.Get("k0"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Get("k0"))
}

func TestStats(t *testing.T) {
	c := New(2, time.Minute)
	c.Put("a", review(1))
	c.Get("a")
	c.Get("a")
	c.Get("nope")

	hits, misses := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(32, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := Key(fmt.Sprintf("k%d", i%40))
				if i%3 == 0 {
					c.Put(k, review(i))
				} else {
					c.Get(k)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 32)
}
