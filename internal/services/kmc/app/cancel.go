package app

import "context"

// cancelToken is the per-worker interrupt flag polled by the engine before
// every step. It latches once the worker context is cancelled and is only
// used by the worker goroutine that owns it.
type cancelToken struct {
	done    <-chan struct{}
	tripped bool
}

func newCancelToken(ctx context.Context) *cancelToken {
	return &cancelToken{done: ctx.Done()}
}

// Interrupted reports whether the worker should stop.
func (t *cancelToken) Interrupted() bool {
	if t.tripped {
		return true
	}
	select {
	case <-t.done:
		t.tripped = true
	default:
	}
	return t.tripped
}
