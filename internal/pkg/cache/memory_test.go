package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetNX(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute, "payment")

	ok, err := c.SetNX(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX inside the ttl must be refused")

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, _ = c.SetNX(ctx, "k", 3, time.Minute)
	assert.True(t, ok, "key is free again after Delete")
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 30*time.Millisecond, "payment")

	ok, _ := c.SetNX(ctx, "k", 1, 0)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		ok, _ := c.SetNX(ctx, "k", 1, 0)
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCacheEvictsOldestAtCapacity(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute, "payment")

	for _, k := range []string{"a", "b", "c"} {
		ok, _ := c.SetNX(ctx, k, 1, 0)
		require.True(t, ok)
	}

	ok, _ := c.SetNX(ctx, "a", 1, 0)
	assert.True(t, ok, "oldest key was evicted")
	ok, _ = c.SetNX(ctx, "c", 1, 0)
	assert.False(t, ok)
}

func TestMemoryCacheSetNXConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(100, time.Minute, "payment")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.SetNX(ctx, "same", 1, 0); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
}

func TestGenerateKey(t *testing.T) {
	c := NewMemoryCache(1, time.Second, "payment")
	assert.Equal(t, "payment:initiate:ORD-1|a@b.co", c.GenerateKey("initiate", "ORD-1|a@b.co"))
}
