// Package pause implements the PAUSE/RUNNING/WAITING half of spec.md
// §4.9's job controller state machine: a gate shared by every pipeline
// goroutine (producer, foreman, workers, writer) that blocks them between
// loop iterations while paused, until Resume or context cancellation
// releases them.
//
// Lives in its own leaf package, rather than internal/importer/job, so
// producer/foreman/worker/writer can hold a reference without an import
// cycle back to job. Grounded on the same mutex+cond idiom as
// internal/importer/queue.Queue's hand-rolled backpressure pair.
package pause

import (
	"context"
	"sync"
)

// Gate blocks callers of Wait while paused. A nil *Gate is always open,
// so components built without pause support (tests, one-off tools) never
// need a nil check of their own.
type Gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

// New builds a Gate that starts open.
func New() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Pause closes the gate. Callers already inside Wait block there; new
// Wait calls block immediately.
func (g *Gate) Pause() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
}

// Resume opens the gate and releases every blocked Wait call.
func (g *Gate) Resume() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.paused = false
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is closed, returning early with ctx.Err()
// if ctx is canceled first. It is meant to be called once per loop
// iteration, alongside the usual ctx.Err() check (spec.md §4.9 "Pause
// transitions threads to WAITING until STOP or ABORT supersedes").
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			g.mu.Lock()
			g.cond.Broadcast()
			g.mu.Unlock()
		case <-stop:
		}
	}()

	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused && ctx.Err() == nil {
		g.cond.Wait()
	}
	return ctx.Err()
}
