package features

import (
	"context"
	"sync"
)

// parallelMap runs fn over indices [0, n) on up to workers goroutines. Each
// worker owns one state from newState. Results keep index order.
func parallelMap[S, T any](ctx context.Context, workers, n int, newState func() S, fn func(state S, idx int) T) ([]T, error) {
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		state := newState()
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = fn(state, i)
		}
		return out, nil
	}

	type result struct {
		idx   int
		value T
		err   error
	}

	jobs := make(chan int)
	results := make(chan result, n)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			state := newState()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				results <- result{idx: idx, value: fn(state, idx)}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		out[res.idx] = res.value
	}
	return out, nil
}
