package stadium

import (
	"math"
	"sync/atomic"
)

// Iteration aggregates one simulated episode of the whole population.
// Time and Ticks are only touched by the orchestrating goroutine; the best
// fitness is shared with the workers.
type Iteration struct {
	Time  float64
	Ticks int

	best atomic.Uint64
}

func (it *Iteration) reset() {
	it.Time = 0
	it.Ticks = 0
	it.best.Store(math.Float64bits(0))
}

func (it *Iteration) BestFitness() float64 {
	return math.Float64frombits(it.best.Load())
}

func (it *Iteration) observe(fitness float64) {
	atomicMax(&it.best, fitness)
}

// atomicMax raises the float64 stored as bits in v to at least x.
func atomicMax(v *atomic.Uint64, x float64) {
	for {
		old := v.Load()
		if math.Float64frombits(old) >= x {
			return
		}
		if v.CompareAndSwap(old, math.Float64bits(x)) {
			return
		}
	}
}

// Block is a half-open index range [Start, End).
type Block struct {
	Start int
	End   int
}

func (b Block) Len() int {
	return b.End - b.Start
}

// Partition splits [0, n) into workers contiguous blocks. The first
// n mod workers blocks hold one extra index; with more workers than indices
// the trailing blocks are empty.
func Partition(n, workers int) []Block {
	if workers < 1 {
		workers = 1
	}
	if n < 0 {
		n = 0
	}
	blocks := make([]Block, workers)
	width, extra := n/workers, n%workers
	start := 0
	for i := range blocks {
		size := width
		if i < extra {
			size++
		}
		blocks[i] = Block{Start: start, End: start + size}
		start += size
	}
	return blocks
}
