package suggest

import "runtime"

// Calculator runs the per-product stages (forecast, safety stock, supplier
// selection). Each product is reduced independently, so the work is spread
// over a pool of workers.
type Calculator struct {
	workers int
}

// NewCalculator creates a Calculator. workers < 1 means GOMAXPROCS.
func NewCalculator(workers int) *Calculator {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Calculator{workers: workers}
}

// Workers returns the size of the worker pool.
func (c *Calculator) Workers() int {
	return c.workers
}
