package stadium

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionCoversEveryIndexOnce(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for w := 1; w <= 9; w++ {
			blocks := Partition(n, w)
			require.Len(t, blocks, w)

			seen := make([]int, n)
			next := 0
			for _, b := range blocks {
				require.Equal(t, next, b.Start, "n=%d w=%d blocks not contiguous", n, w)
				for i := b.Start; i < b.End; i++ {
					seen[i]++
				}
				next = b.End
			}
			require.Equal(t, n, next, "n=%d w=%d", n, w)
			for i, c := range seen {
				require.Equal(t, 1, c, "n=%d w=%d index %d", n, w, i)
			}
		}
	}
}

func TestPartitionBalancesUnevenSplit(t *testing.T) {
	blocks := Partition(10, 4)
	sizes := []int{blocks[0].Len(), blocks[1].Len(), blocks[2].Len(), blocks[3].Len()}
	assert.Equal(t, []int{3, 3, 2, 2}, sizes)
}

func TestAtomicMaxUnderContention(t *testing.T) {
	var v atomic.Uint64
	v.Store(math.Float64bits(0))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				atomicMax(&v, float64(w*1000+i))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 7999.0, math.Float64frombits(v.Load()))
}

func TestIterationResetClearsBest(t *testing.T) {
	var it Iteration
	it.observe(12)
	it.observe(3)
	assert.Equal(t, 12.0, it.BestFitness())
	it.Time, it.Ticks = 4, 5
	it.reset()
	assert.Zero(t, it.BestFitness())
	assert.Zero(t, it.Time)
	assert.Zero(t, it.Ticks)
}
