// Package fifo implements the bounded, byte-sized ring of decoded entries
// indexed by entry ID modulo ring size (spec.md §4.4). It is the
// producer->foreman->worker handoff point for a bulk-import job.
//
// Grounded on the teacher's internal/storage/stream/ringbuffer.go (a
// mutex+cond bounded ring), generalized from byte events to owned Entry
// pointers with per-slot refcounts per spec.md §3's ownership rule.
package fifo

import (
	"context"
	"sync"

	"github.com/oba-ldap/obacore/internal/importer/entry"
)

// ErrTooLarge is returned by fitOrExpand when an entry exceeds the ring's
// maximum capacity even after expansion (spec.md §4.4: "too large, skip
// this entry").
type ErrTooLarge struct{ Size, Max int64 }

func (e *ErrTooLarge) Error() string {
	return "fifo: entry too large for ring"
}

type slot struct {
	id       uint32
	hasEntry bool
	entry    *entry.Entry
	size     int64
}

// Ring is the bounded FIFO described by spec.md §4.4.
// leadID and trailingID both hold the ID of the most recently pushed
// entry; readyID is the foreman's watermark, moved by AdvanceReady.
type Ring struct {
	mu   sync.Mutex
	cond *sync.Cond

	slots    []slot
	occupied int64
	capacity int64 // current byte capacity, grows toward capMax
	capMax   int64 // upper bound capacity cannot expand past

	leadID    uint32
	readyID   uint32
	trailingID uint32
	haveLead  bool

	closed bool
}

// New creates a Ring with size slots (size also bounds foreman-to-worker
// lag, spec.md §4.4) and the given starting/maximum byte capacities.
func New(size int, startCapacity, maxCapacity int64) *Ring {
	r := &Ring{
		slots:  make([]slot, size),
		capMax: maxCapacity,
	}
	r.cond = sync.NewCond(&r.mu)
	r.capacity = startCapacity
	return r
}

// Push places e into the ring at slot (e.ID mod len(slots)), after calling
// fitOrExpand/waitForSpace per spec.md §4.4. Returns ErrTooLarge if the
// entry cannot ever fit.
func (r *Ring) Push(ctx context.Context, e *entry.Entry) error {
	size := e.ByteSize()
	if err := r.fitOrExpand(size); err != nil {
		return err
	}
	if err := r.waitForSpace(ctx, e.ID, size); err != nil {
		return err
	}

	r.mu.Lock()
	idx := int(e.ID) % len(r.slots)
	r.slots[idx] = slot{id: e.ID, hasEntry: true, entry: e, size: size}
	r.occupied += size
	r.leadID = e.ID
	r.haveLead = true
	r.trailingID = e.ID
	r.cond.Broadcast()
	r.mu.Unlock()
	return nil
}

// fitOrExpand grows the ring's byte capacity to fit desired if possible,
// or reports ErrTooLarge (spec.md §4.4).
func (r *Ring) fitOrExpand(desired int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.occupied+desired <= r.capacity {
		return nil
	}
	if desired > r.capMax {
		return &ErrTooLarge{Size: desired, Max: r.capMax}
	}
	newCap := r.capacity * 2
	if newCap > r.capMax {
		newCap = r.capMax
	}
	if newCap < r.occupied+desired {
		newCap = r.occupied + desired
		if newCap > r.capMax {
			return &ErrTooLarge{Size: desired, Max: r.capMax}
		}
	}
	r.capacity = newCap
	return nil
}

// waitForSpace scans for recyclable slots (refcount==0 and id<=readyID,
// spec.md I2) and frees them; while the ring lacks desired bytes or the
// slot for id still holds an entry, and none are free, it blocks until
// signaled.
func (r *Ring) waitForSpace(ctx context.Context, id uint32, desired int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.occupied+desired > r.capacity || r.slots[int(id)%len(r.slots)].hasEntry {
		freed := r.reclaimLocked()
		if freed {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				r.cond.Broadcast()
			case <-done:
			}
		}()
		r.cond.Wait()
		close(done)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// reclaimLocked frees any slot whose entry is recyclable per I2. Caller
// holds r.mu.
func (r *Ring) reclaimLocked() bool {
	freed := false
	for i := range r.slots {
		s := &r.slots[i]
		if !s.hasEntry {
			continue
		}
		if s.entry.Refcount() == 0 && s.id <= r.readyID {
			r.occupied -= s.size
			*s = slot{}
			freed = true
		}
	}
	return freed
}

// Fetch returns the entry with the given ID, busy-waiting until the
// producer has placed it (id<=leadID) and, for workers, until the foreman
// has approved it (id<=readyID) per spec.md §4.4.
func (r *Ring) Fetch(ctx context.Context, id uint32, forWorker bool) (*entry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		idx := int(id) % len(r.slots)
		s := r.slots[idx]
		ready := s.hasEntry && s.id == id && (!forWorker || id <= r.readyID)
		if ready {
			return s.entry, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				r.cond.Broadcast()
			case <-done:
			}
		}()
		r.cond.Wait()
		close(done)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// AdvanceReady moves readyID forward to id (called by the foreman after it
// absorbs an entry, spec.md §4.6 step 6) and wakes any waiting workers.
func (r *Ring) AdvanceReady(id uint32) {
	r.mu.Lock()
	r.readyID = id
	r.cond.Broadcast()
	r.mu.Unlock()
}

// ReadyID returns the foreman's current ready-ID watermark.
func (r *Ring) ReadyID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyID
}

// Close wakes every waiter (used on job abort).
func (r *Ring) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}
