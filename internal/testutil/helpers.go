package testutil

import (
	"sync"
	"testing"
)

// RunConcurrent executes fn concurrently n times and waits for all workers.
// Panics and returned errors are reported as test failures.
func RunConcurrent(t *testing.T, n int, fn func(workerID int) error) {
	t.Helper()

	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("worker %d panicked: %v", workerID, r)
				}
			}()

			if err := fn(workerID); err != nil {
				t.Errorf("worker %d: %v", workerID, err)
			}
		}(i)
	}

	wg.Wait()
}
