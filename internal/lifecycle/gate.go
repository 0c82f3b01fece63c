package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Gate wraps a single externally-visible mutation with re-entrancy
// protection. A second caller arriving while a mutation runs is turned away
// with ErrBusy immediately; attempts are never queued. The busy flag is
// released on every path, including panics raised by the operation, so one
// fault can never wedge the gate shut.
type Gate struct {
	busy atomic.Bool
}

// Do runs op unless a previous invocation is still running. Faults raised by
// op are captured and reported as ErrRemoteFailure instead of propagating.
func (g *Gate) Do(ctx context.Context, op func(context.Context) error) (err error) {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer g.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: internal fault: %v", ErrRemoteFailure, r)
		}
	}()
	return op(ctx)
}

// Busy reports whether a mutation is currently running.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
