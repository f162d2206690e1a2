package concurrent

import (
	"sync"

	"github.com/scarab-sim/scarab/pkg/sequence"
)

// ParallelMute runs the action function for each element of the iterator in a separate goroutine.
// It waits for all goroutines to finish. ParallelMute returns nothing: any error returned by action is ignored.
func ParallelMute[T any](i *sequence.Iterator[T], action func(T) error) {
	wg := sync.WaitGroup{}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		wg.Add(1)
		go func(value T) {
			defer wg.Done()
			_ = action(value)
		}(value)
	}

	wg.Wait()
}
