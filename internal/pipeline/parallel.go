package pipeline

import (
	"runtime"
	"sync"
)

type orderedResult[T any] struct {
	Value T
	Err   error
}

// runOrdered applies fn to every item on at most concurrency goroutines and
// returns the results in input order.
func runOrdered[T any, R any](items []T, concurrency int, fn func(T) (R, error)) []orderedResult[R] {
	if len(items) == 0 {
		return nil
	}
	concurrency = clampWorkers(concurrency, len(items))

	sem := make(chan struct{}, concurrency)
	results := make([]orderedResult[R], len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			v, err := fn(item)
			results[i] = orderedResult[R]{Value: v, Err: err}
		}(i, item)
	}
	wg.Wait()
	return results
}

// firstError runs fn for every item and returns the first failure recorded.
// All items are attempted; the error surfaces after every worker has finished.
func firstError[T any](items []T, concurrency int, fn func(T) error) error {
	if len(items) == 0 {
		return nil
	}
	concurrency = clampWorkers(concurrency, len(items))

	var (
		mu    sync.Mutex
		first error
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)
	for _, item := range items {
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := fn(item); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()
	return first
}

func clampWorkers(n, items int) int {
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > items {
		n = items
	}
	return n
}
