package bridge

import (
	"context"
	"sync"
)

// Readiness is implemented by anything that finishes initializing in the
// background (module compilation, instantiation, worker start-up).
type Readiness interface {
	Ready() bool
	AwaitReady(ctx context.Context) error
}

// Gate is a one-shot readiness latch. It starts closed; Open releases every
// waiter. A gate opened with an error stays not-ready forever.
//
// Go Pattern: closing a channel is a broadcast; every goroutine blocked in
// a receive wakes up at once, which is exactly the "signal ready" semantics
// we need. sync.Once makes a second Open a no-op instead of a panic.
type Gate struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewGate returns a closed gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Open marks initialization as finished. A non-nil err records a failed
// initialization.
func (g *Gate) Open(err error) {
	g.once.Do(func() {
		g.err = err
		close(g.done)
	})
}

// Ready reports whether initialization finished successfully.
func (g *Gate) Ready() bool {
	select {
	case <-g.done:
		return g.err == nil
	default:
		return false
	}
}

// Err returns the initialization error, if the gate was opened with one.
func (g *Gate) Err() error {
	select {
	case <-g.done:
		return g.err
	default:
		return nil
	}
}

// AwaitReady blocks until the gate opens or ctx ends.
func (g *Gate) AwaitReady(ctx context.Context) error {
	select {
	case <-g.done:
		if g.err != nil {
			return newError(ErrModuleNotReady, StageReady, g.err)
		}
		return nil
	case <-ctx.Done():
		return newError(ErrModuleNotReady, StageReady, ctx.Err())
	}
}
