package search

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceAllocator_NextIsDistinctUnderContention(t *testing.T) {
	const (
		goroutines = 16
		perWorker  = 5000
	)
	a := NewNonceAllocator(1, 0)

	results := make([][]uint64, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n, ok := a.Next()
				if !ok {
					return
				}
				results[g] = append(results[g], n)
			}
		}(g)
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, goroutines*perWorker)
	for _, rs := range results {
		for _, n := range rs {
			_, dup := seen[n]
			require.False(t, dup, "nonce %d handed out twice", n)
			seen[n] = struct{}{}
		}
	}
	assert.Len(t, seen, goroutines*perWorker)
	assert.Equal(t, uint64(1+goroutines*perWorker), a.Cursor())
}

func TestNonceAllocator_ReserveBlocksAreDisjoint(t *testing.T) {
	a := NewNonceAllocator(0, 0)
	ctx := context.Background()

	type block struct{ first, count uint64 }
	var (
		mu     sync.Mutex
		blocks []block
		wg     sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				first, count, err := a.Reserve(ctx, 100)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				blocks = append(blocks, block{first, count})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	covered := make([]bool, 8*200*100)
	for _, b := range blocks {
		require.Equal(t, uint64(100), b.count)
		for n := b.first; n < b.first+b.count; n++ {
			require.False(t, covered[n], "nonce %d in two blocks", n)
			covered[n] = true
		}
	}
}

func TestNonceAllocator_Bounded(t *testing.T) {
	ctx := context.Background()
	a := NewNonceAllocator(10, 25)

	first, count, err := a.Reserve(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), first)
	assert.Equal(t, uint64(10), count)

	first, count, err = a.Reserve(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), first)
	assert.Equal(t, uint64(5), count, "last block is cut at the limit")

	_, _, err = a.Reserve(ctx, 10)
	assert.ErrorIs(t, err, ErrExhausted)

	_, ok := a.Next()
	assert.False(t, ok)
	assert.Equal(t, uint64(25), a.Cursor(), "cursor never moves past the limit")
}

func TestNonceAllocator_NeverWraps(t *testing.T) {
	a := NewNonceAllocator(math.MaxUint64-3, 0)

	first, count, err := a.Reserve(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-3), first)
	assert.Equal(t, uint64(3), count)

	_, _, err = a.Reserve(context.Background(), 1)
	assert.ErrorIs(t, err, ErrExhausted)
}
