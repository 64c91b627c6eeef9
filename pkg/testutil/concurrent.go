package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
)

// ConcurrentResult tracks outcomes of concurrent test operations by failure kind.
type ConcurrentResult struct {
	Successes int32
	User      int32
	Internal  int32
	Transport int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.User + r.Internal + r.Transport
}

// RunConcurrent executes fn in parallel goroutines and classifies each outcome with
// registryerr.KindOf.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, user, internal, transport atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			if err == nil {
				successes.Add(1)
				return
			}
			switch registryerr.KindOf(err) {
			case registryerr.KindUser:
				user.Add(1)
			case registryerr.KindTransport:
				transport.Add(1)
			default:
				internal.Add(1)
			}
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		User:      user.Load(),
		Internal:  internal.Load(),
		Transport: transport.Load(),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
