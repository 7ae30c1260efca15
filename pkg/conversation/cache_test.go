package conversation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameNodeUnderConcurrency(t *testing.T) {
	cache := NewCache(DefaultMaxNodes)

	const workers = 32
	nodes := make([]*Node, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nodes[i] = cache.GetOrCreate(42)
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Same(t, nodes[0], nodes[i])
	}
	assert.Equal(t, 1, cache.Len())
}

func TestPopulationRunsExactlyOnce(t *testing.T) {
	cache := NewCache(DefaultMaxNodes)

	var populations int64
	const workers = 16
	texts := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node := cache.GetOrCreate(7)
			node.Lock()
			if !node.Populated() {
				atomic.AddInt64(&populations, 1)
				node.SetText("hello")
			}
			texts[i] = *node.Text
			node.Unlock()
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, populations)
	for _, text := range texts {
		assert.Equal(t, "hello", text)
	}
}

func TestEvictionRetainsHighestKeys(t *testing.T) {
	cache := NewCache(500)
	for i := 1; i <= 600; i++ {
		cache.GetOrCreate(NodeID(i))
	}
	cache.EvictToCapacity()

	require.Equal(t, 500, cache.Len())
	for i := 1; i <= 100; i++ {
		_, ok := cache.Get(NodeID(i))
		assert.False(t, ok, "key %d should have been evicted", i)
	}
	for i := 101; i <= 600; i++ {
		_, ok := cache.Get(NodeID(i))
		require.True(t, ok, "key %d should have been retained", i)
	}
}

func TestEvictionIsBoundedAfterInterleavedInserts(t *testing.T) {
	cache := NewCache(10)
	for i := 1; i <= 100; i++ {
		cache.GetOrCreate(NodeID(i))
		cache.EvictToCapacity()
		require.LessOrEqual(t, cache.Len(), 10)
	}
	for i := 91; i <= 100; i++ {
		_, ok := cache.Get(NodeID(i))
		require.True(t, ok)
	}
}

func TestEvictionWaitsForNodeLock(t *testing.T) {
	cache := NewCache(1)
	victim := cache.GetOrCreate(1)
	cache.GetOrCreate(2)

	victim.Lock()
	done := make(chan struct{})
	go func() {
		cache.EvictToCapacity()
		close(done)
	}()

	// The victim is mid-population, eviction must block.
	select {
	case <-done:
		t.Fatal("eviction finished while the victim node was locked")
	case <-time.After(50 * time.Millisecond):
	}

	victim.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("eviction did not finish after the lock was released")
	}

	require.Equal(t, 1, cache.Len())
	_, ok := cache.Get(2)
	assert.True(t, ok)
}
