// Package async provides simple, generic helpers for running computations asynchronously and
// waiting for their completion.
//
// The package is centred around the generic type Future that represents the eventual result of an
// asynchronous operation. A Future can be obtained by calling Async, which starts the supplied
// function in its own goroutine and immediately returns a *Future instance. The caller can then
// wait for completion with Await, block with a timeout using AwaitWithTimeout, or poll the state
// with IsComplete.
//
// Resolved and Rejected construct already-completed futures, which is convenient for code paths
// that fail before any asynchronous work starts (for example a validation error discovered
// synchronously that still has to flow through future-based bookkeeping).
//
// When coordinating multiple tasks, WaitAll collects every result but stops awaiting after the
// first error, while Settle always drains every future and reports the individual outcomes. The
// latter is the right tool for fan-out workloads where sibling tasks must not be abandoned because
// one of them failed.
//
// All helpers are context-aware: if the provided context is cancelled before the computation
// starts, the underlying goroutine aborts early and the Future is completed with the context
// error.
//
// # Usage
//
//	import (
//	    "context"
//	    "time"
//	    "github.com/hl1221hl/thingsboard/pkg/async"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    future := async.Async(ctx, 42, func(_ context.Context, v int) (string, error) {
//	        time.Sleep(100 * time.Millisecond)
//	        return fmt.Sprintf("value is %d", v), nil
//	    })
//
//	    // do other work …
//	    res, err := future.Await()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res)
//	}
//
// # Performance Considerations
//
// Futures are lightweight wrappers around goroutines and channels. The overhead is minimal but you
// should avoid spawning an excessive number of goroutines if the workload could be better handled
// by a worker pool or other means of limiting concurrency.
package async
