// Package parallel fans index loops out over a bounded number of goroutines.
package parallel

import "sync"
import "sync/atomic"

// ForEach calls body for every i in [0, length) on at most limit goroutines.
// Workers claim the next index from a shared counter, so uneven bodies balance out.
// It returns once every body has returned.
func ForEach(length, limit int, body func(i int)) {
	if length <= 0 {
		return
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > length {
		limit = length
	}
	if limit == 1 {
		for i := 0; i < length; i++ {
			body(i)
		}
		return
	}

	var next int64
	var wg sync.WaitGroup
	wg.Add(limit)
	for n := 0; n < limit; n++ {
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&next, 1) - 1)
				if i >= length {
					return
				}
				body(i)
			}
		}()
	}
	wg.Wait()
}

// ForEachErr is ForEach for fallible bodies. Once a body fails no further index is
// claimed; the first error is returned.
func ForEachErr(length, limit int, body func(i int) error) error {
	var (
		once    sync.Once
		first   error
		stopped atomic.Bool
	)
	ForEach(length, limit, func(i int) {
		if stopped.Load() {
			return
		}
		if err := body(i); err != nil {
			once.Do(func() {
				first = err
				stopped.Store(true)
			})
		}
	})
	return first
}
