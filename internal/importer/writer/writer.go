// Package writer implements the single writer thread described in
// spec.md §4.8: the only goroutine that ever opens a read-write LMDB
// transaction, draining the write queue and applying a batch per
// transaction, replying to synchronous ops once committed.
//
// Grounded on the teacher's internal/storage/tx/manager.go (which already
// centralizes write-transaction ownership behind a single manager), now
// applying ops against the real LMDB adapter in internal/kv instead of the
// teacher's hand-rolled page manager.
package writer

import (
	"context"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"

	"github.com/oba-ldap/obacore/internal/importer/pause"
	"github.com/oba-ldap/obacore/internal/importer/queue"
	"github.com/oba-ldap/obacore/internal/importer/spool"
	"github.com/oba-ldap/obacore/internal/kv"
	"github.com/oba-ldap/obacore/internal/logging"
)

// Slot is a per-table writer-queue binding (spec.md §3 "Per-table slot").
type Slot struct {
	Name   string
	DBI    kv.DBI
	Spool  *spool.Spool // non-nil while this slot is in delayed/spool mode
	Closed bool

	cursor          *kv.Cursor
	lastDisposition kv.Disposition
}

// Writer owns every write transaction for a job (spec.md I3, P3).
type Writer struct {
	env   *kv.Env
	queue *queue.Queue
	log   logging.Logger

	slots map[string]*Slot

	weightOutSnapshot int64
	weightInSnapshot  int64

	// Gate pauses the writer between batches (spec.md §4.9); nil means
	// the writer never pauses. Set by job.New before Run is called.
	Gate *pause.Gate
}

// New builds a Writer bound to env and q.
func New(env *kv.Env, q *queue.Queue, log logging.Logger) *Writer {
	if log == nil {
		log = logging.Nop()
	}
	return &Writer{env: env, queue: q, log: log, slots: make(map[string]*Slot)}
}

// RegisterSlot declares a target table the writer will apply ops against.
func (w *Writer) RegisterSlot(name string, dbi kv.DBI) {
	w.slots[name] = &Slot{Name: name, DBI: dbi}
}

// BindQueue attaches the write queue this writer drains. Callers that
// construct a Writer before the rest of a job's pipeline exists (so its
// registered slots are ready before the producer starts pushing) use this
// to hand the writer the job's shared queue once it is built.
func (w *Writer) BindQueue(q *queue.Queue) {
	w.queue = q
}

// DelaySlot switches name into spooled mode: subsequent applies for it are
// written to sp instead of LMDB (spec.md §4.3), because its table is
// concurrently being read by a producer (reindex/upgrade).
func (w *Writer) DelaySlot(name string, sp *spool.Spool) {
	if s, ok := w.slots[name]; ok {
		s.Spool = sp
	}
}

// Run drives the drain/apply/commit/reply loop until the queue aborts and
// every slot is closed (spec.md §4.8). It returns after replaying any
// spool files left in delayed mode.
func (w *Writer) Run(ctx context.Context) error {
	for {
		if err := w.Gate.Wait(ctx); err != nil {
			break
		}

		batch := w.queue.Drain()
		if len(batch) == 0 {
			if w.allSlotsClosed() {
				break
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err := w.applyBatch(batch); err != nil {
			w.log.Error("writer: batch failed", "error", err)
			return err
		}

		out, in := w.queue.Progress()
		w.weightOutSnapshot, w.weightInSnapshot = out, in

		if w.allSlotsClosed() && w.queue.Depth() == 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return w.replaySpools()
}

func (w *Writer) allSlotsClosed() bool {
	for _, s := range w.slots {
		if !s.Closed {
			return false
		}
	}
	return true
}

// applyBatch applies every element in one write transaction, replying to
// sync ops only after the commit returns (spec.md §4.8, I4, P4).
func (w *Writer) applyBatch(batch []*queue.Element) error {
	txn, err := w.env.TxnBegin(true)
	if err != nil {
		// Fatal: the single writer thread cannot make progress without a
		// write transaction. Wrapped with pkg/errors so the job
		// controller's fatal-error log carries a stack trace back to the
		// LMDB adapter call that failed.
		return pkgerrors.Wrap(err, "writer: begin write txn")
	}

	var syncOps []*queue.Element
	var applyErr error
	for _, el := range batch {
		if el.Action == queue.ActionClose {
			if err := w.CloseSlot(el.TargetSlot); err != nil {
				applyErr = err
				break
			}
			if el.IsSync() {
				syncOps = append(syncOps, el)
			}
			continue
		}
		if err := w.applyOp(txn, el); err != nil {
			applyErr = err
			break
		}
		if el.IsSync() {
			syncOps = append(syncOps, el)
		}
	}

	if applyErr != nil {
		txn.Abort()
		for _, el := range syncOps {
			el.Complete(-1)
		}
		w.queue.ReleaseSync()
		return applyErr
	}

	rc := 0
	if err := txn.Commit(); err != nil {
		rc = -1
		applyErr = pkgerrors.Wrap(err, "writer: commit write txn")
	}

	for _, el := range syncOps {
		el.Complete(rc)
	}
	if len(syncOps) > 0 {
		w.queue.ReleaseSync()
	}
	return applyErr
}

// applyOp dispatches a single element per spec.md §4.8's apply_op table.
func (w *Writer) applyOp(txn *kv.Txn, el *queue.Element) error {
	slot := w.slots[el.TargetSlot]
	if slot == nil {
		return fmt.Errorf("writer: unknown slot %q", el.TargetSlot)
	}
	if slot.Spool != nil {
		return slot.Spool.Write(el)
	}

	switch el.Action {
	case queue.ActionAdd:
		return txn.Put(slot.DBI, el.Key, el.Data, 0)
	case queue.ActionAddIndex:
		disp, err := w.applyIndexInsert(txn, slot, el)
		slot.lastDisposition = disp
		return err
	case queue.ActionDelIndex:
		return w.applyIndexDelete(txn, slot, el)
	case queue.ActionAddVLV:
		return txn.Put(slot.DBI, el.Key, el.Data, 0)
	case queue.ActionDelVLV:
		return txn.Del(slot.DBI, el.Key, nil)
	case queue.ActionAddEntryRDN, queue.ActionDelEntryRDN:
		return w.applyEntryRDN(txn, slot, el)
	case queue.ActionRMDir, queue.ActionOpen:
		return nil // reserved control messages, not emitted on common paths
	default:
		return fmt.Errorf("writer: unhandled action %d", el.Action)
	}
}

func (w *Writer) applyIndexInsert(txn *kv.Txn, slot *Slot, el *queue.Element) (kv.Disposition, error) {
	existing, err := txn.Get(slot.DBI, el.Key)
	var list *kv.IDList
	if err == kv.ErrNotFound {
		list = kv.NewIDList()
	} else if err != nil {
		return kv.DispositionNormal, err
	} else {
		list, err = kv.DecodeIDList(existing, len(existing) == 0)
		if err != nil {
			return kv.DispositionNormal, err
		}
	}
	id := kv.DecodeEID(el.Data)
	disp := list.Add(id)
	return disp, txn.Put(slot.DBI, el.Key, list.Encode(), 0)
}

func (w *Writer) applyIndexDelete(txn *kv.Txn, slot *Slot, el *queue.Element) error {
	existing, err := txn.Get(slot.DBI, el.Key)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	list, err := kv.DecodeIDList(existing, len(existing) == 0)
	if err != nil {
		return err
	}
	list.Remove(kv.DecodeEID(el.Data))
	return txn.Put(slot.DBI, el.Key, list.Encode(), 0)
}

// applyEntryRDN maintains the subtree-rename index via the slot's cursor,
// opened lazily on first use (spec.md §4.8).
func (w *Writer) applyEntryRDN(txn *kv.Txn, slot *Slot, el *queue.Element) error {
	if slot.cursor == nil {
		c, err := txn.CursorOpen(slot.DBI)
		if err != nil {
			return err
		}
		slot.cursor = c
	}
	if el.Action == queue.ActionAddEntryRDN {
		return slot.cursor.Put(el.Key, el.Data, 0)
	}
	return txn.Del(slot.DBI, el.Key, el.Data)
}

// CloseSlot marks a slot closed and flushes its spool; applyBatch calls it
// when it drains an ActionClose element from the queue.
func (w *Writer) CloseSlot(name string) error {
	slot := w.slots[name]
	if slot == nil {
		return fmt.Errorf("writer: unknown slot %q", name)
	}
	if slot.cursor != nil {
		slot.cursor.Close()
		slot.cursor = nil
	}
	slot.Closed = true
	if slot.Spool != nil {
		return slot.Spool.Flush()
	}
	return nil
}

// replaySpools rewinds and replays any slot's spooled writes through the
// normal write-txn machinery after producers have finished reading the
// corresponding table (spec.md §4.3, §4.8's "after loop").
func (w *Writer) replaySpools() error {
	for name, slot := range w.slots {
		if slot.Spool == nil {
			continue
		}
		path := slot.Spool.Path()
		if err := slot.Spool.Close(); err != nil {
			return fmt.Errorf("writer: closing spool for %s: %w", name, err)
		}
		// Clear the slot's spool binding before replay: applyOp routes to
		// slot.Spool when it is non-nil, and the point of replay is to
		// apply these elements to LMDB, not to re-spool them.
		slot.Spool = nil

		rd, err := spool.OpenReader(path)
		if err != nil {
			return fmt.Errorf("writer: reopening spool for %s: %w", name, err)
		}

		txn, err := w.env.TxnBegin(true)
		if err != nil {
			rd.Close()
			return err
		}
		for {
			el, err := rd.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				// A corrupt or truncated spool record is fatal to the job
				// (spec.md §4.3: "Failures reading a spool file are fatal
				// to the job"), not a silent end-of-file.
				txn.Abort()
				rd.Close()
				return pkgerrors.Wrapf(err, "writer: corrupt spool for %s", name)
			}
			el.TargetSlot = name
			if err := w.applyOp(txn, el); err != nil {
				txn.Abort()
				rd.Close()
				return fmt.Errorf("writer: replaying spool for %s: %w", name, err)
			}
		}
		if err := txn.Commit(); err != nil {
			rd.Close()
			return err
		}
		rd.Close()
		if err := os.Remove(path); err != nil {
			w.log.Warn("writer: could not remove spool file", "slot", name, "error", err)
		}
	}
	return nil
}
