// Package gate bounds how many external calls run at once.
package gate

import (
	"context"
	"sync"
)

// Gate is a counting admission gate. Callers block in Acquire until a slot
// is free or their context ends.
type Gate struct {
	sem chan struct{}

	mu       sync.Mutex
	inFlight int
	peak     int
	observe  func(inFlight int)
}

// New returns a gate admitting at most k concurrent holders. k < 1 is
// treated as 1.
func New(k int) *Gate {
	if k < 1 {
		k = 1
	}
	return &Gate{sem: make(chan struct{}, k)}
}

// Observe registers fn to be called with the in-flight count after every
// change. It must be set before the gate is shared.
func (g *Gate) Observe(fn func(inFlight int)) {
	g.observe = fn
}

// Capacity returns the configured ceiling.
func (g *Gate) Capacity() int {
	return cap(g.sem)
}

// Acquire waits for a slot. It returns ctx.Err() if the context ends
// first, in which case no slot is held.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.adjust(1)
	return nil
}

// Release frees a slot taken by a successful Acquire.
func (g *Gate) Release() {
	g.adjust(-1)
	<-g.sem
}

// InFlight returns the number of current holders.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Peak returns the highest InFlight value observed.
func (g *Gate) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

func (g *Gate) adjust(delta int) {
	g.mu.Lock()
	g.inFlight += delta
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	n := g.inFlight
	fn := g.observe
	g.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}
