package app

import "fmt"

// WorkerAbortError reports a worker that stopped on an unexpected failure.
// Completed carriers were persisted on a best-effort basis.
type WorkerAbortError struct {
	Worker    int
	Completed int
	Cause     error
}

func (e *WorkerAbortError) Error() string {
	return fmt.Sprintf("worker %d aborted after %d jobs: %v", e.Worker, e.Completed, e.Cause)
}

func (e *WorkerAbortError) Unwrap() error {
	return e.Cause
}

// panicError carries a value recovered from a panicking job.
type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
