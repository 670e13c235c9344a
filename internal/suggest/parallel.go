package suggest

import "sync"

// runPerKey applies fn to every key on a bounded pool of workers. Results are
// stored at the key's index so the output order never depends on scheduling.
func runPerKey[T any](workers int, keys []string, fn func(key string) T) []T {
	out := make([]T, len(keys))
	if workers > len(keys) {
		workers = len(keys)
	}
	if workers <= 1 {
		for i, k := range keys {
			out[i] = fn(k)
		}
		return out
	}

	jobChan := make(chan int, len(keys))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				out[i] = fn(keys[i])
			}
		}()
	}

	for i := range keys {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait()

	return out
}
