// Package parallel provides the worker helpers used to spread batched
// tensor operations across CPU cores.
//
// The batch and row axes of a matrix product are independent, so the
// loops here need no coordination beyond a WaitGroup. Results are
// identical to the sequential order.
package parallel

import (
	"runtime"
	"sync"
)

// minWork is the smallest iteration count worth spawning goroutines for.
const minWork = 4

// For executes f(i) for every i in [0, n), splitting the range across
// up to GOMAXPROCS goroutines. Small ranges run sequentially. For
// returns once every call has completed.
func For(n int, f func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	if n < minWork || workers <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
