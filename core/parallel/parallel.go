package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Parallelize divides items into contiguous ranges, one per CPU core, and
// runs fn on each range concurrently. It returns when every range is done.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items
// is at most threshold, and through Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Workers normalises a requested pool size: non-positive means one worker
// per CPU, and the pool never exceeds the number of items.
func Workers(requested, items int) int {
	w := requested
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > items {
		w = items
	}
	if w < 1 {
		w = 1
	}
	return w
}

// ForEach calls fn(ctx, i) for every i in [0, items) on a pool of workers
// goroutines. Indices are handed out through a channel so a slow item does
// not hold up a whole range. Callers write results into slot i of a
// pre-sized slice, which keeps the output order independent of scheduling.
//
// Once ctx is cancelled no further indices are dispatched; ForEach waits for
// in-flight calls and returns ctx.Err().
func ForEach(ctx context.Context, items, workers int, fn func(ctx context.Context, i int)) error {
	if items <= 0 {
		return ctx.Err()
	}
	workers = Workers(workers, items)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(ctx, i)
			}
		}()
	}

dispatch:
	for i := 0; i < items; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return ctx.Err()
}
