package rendergraph

import "time"

// ExecutorBuilderOption is a functional option applied to an executor during construction via NewExecutor.
type ExecutorBuilderOption func(*executor)

// WithWorkers sets the number of pool workers recording passes. A value of 1 or less records
// every pass on the calling goroutine.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - ExecutorBuilderOption: a function that sets the worker count
func WithWorkers(n int) ExecutorBuilderOption {
	return func(e *executor) {
		e.workers = n
	}
}

// WithQueueSize sets the capacity of the worker pool's task queue.
//
// Parameters:
//   - n: the queue capacity
//
// Returns:
//   - ExecutorBuilderOption: a function that sets the queue size
func WithQueueSize(n int) ExecutorBuilderOption {
	return func(e *executor) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithIdleTimeout sets how long an idle pool worker waits before exiting.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - ExecutorBuilderOption: a function that sets the idle timeout
func WithIdleTimeout(d time.Duration) ExecutorBuilderOption {
	return func(e *executor) {
		if d > 0 {
			e.idle = d
		}
	}
}
