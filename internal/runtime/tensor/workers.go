package tensor

import (
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// workers bounds the goroutines a single kernel call may use. The engine
// sets it from runtime.threads; 1 keeps every kernel on the calling
// goroutine.
var workers atomic.Int32

func init() {
	workers.Store(1)
}

// SetWorkers sets the kernel parallelism. n < 1 is treated as 1.
func SetWorkers(n int) {
	workers.Store(int32(min(max(n, 1), math.MaxInt32)))
}

func getWorkers() int {
	return max(int(workers.Load()), 1)
}

// parallelFor splits [0, n) into at most maxWorkers contiguous ranges and
// runs fn on each. Every output index is written by exactly one range, so
// results do not depend on the worker count.
func parallelFor(n, maxWorkers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}

	if maxWorkers <= 1 || n == 1 {
		fn(0, n)
		return
	}

	maxWorkers = min(maxWorkers, n)
	chunk := (n + maxWorkers - 1) / maxWorkers

	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)

		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}

	_ = g.Wait()
}
