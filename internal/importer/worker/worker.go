// Package worker implements spec.md §4.7: one goroutine per indexed
// attribute, walking the FIFO ring in ID order behind the foreman's
// ready-ID watermark and emitting index update messages to the write
// queue.
package worker

import (
	"context"
	"strings"

	"github.com/oba-ldap/obacore/internal/importer/entry"
	"github.com/oba-ldap/obacore/internal/importer/fifo"
	"github.com/oba-ldap/obacore/internal/importer/pause"
	"github.com/oba-ldap/obacore/internal/importer/queue"
	"github.com/oba-ldap/obacore/internal/kv"
	"github.com/oba-ldap/obacore/internal/logging"
)

// IndexMask selects which index types a worker maintains for its
// attribute (spec.md §4.7).
type IndexMask uint8

const (
	IndexPresence IndexMask = 1 << iota
	IndexEquality
	IndexSubstring
	IndexVLV
	IndexApproximate
)

// Tombstone-only attributes a worker still updates for tombstone entries
// (spec.md §4.7 step 4).
var tombstoneAttrs = map[string]bool{
	"nsuniqueid":     true,
	"objectclass":    true,
	"nscpentrydn":    true,
	"nstombstonecsn": true,
}

// Worker maintains one attribute's index across the whole ID range.
type Worker struct {
	Attribute string
	Mask      IndexMask
	slotName  string

	ring *fifo.Ring
	q    *queue.Queue
	log  logging.Logger

	firstID, lastID uint32

	substringBuf map[string][]byte // batch-level buffer for substring keys

	// Gate pauses the worker between entries (spec.md §4.9); nil means
	// the worker never pauses. Set by job.New before Run is called.
	Gate *pause.Gate
}

// New builds a Worker for attribute, targeting dbi slotName in the writer.
func New(attribute string, mask IndexMask, slotName string, ring *fifo.Ring, q *queue.Queue, log logging.Logger, firstID, lastID uint32) *Worker {
	if log == nil {
		log = logging.Nop()
	}
	return &Worker{
		Attribute: strings.ToLower(attribute), Mask: mask, slotName: slotName,
		ring: ring, q: q, log: log, firstID: firstID, lastID: lastID,
		substringBuf: make(map[string][]byte),
	}
}

// Run walks every ID in range, indexing this worker's attribute, then
// flushes buffered substring keys and emits a CLOSE (spec.md §4.7 step 5).
func (w *Worker) Run(ctx context.Context) error {
	for id := w.firstID; id <= w.lastID; id++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.Gate.Wait(ctx); err != nil {
			return err
		}
		e, err := w.ring.Fetch(ctx, id, true)
		if err != nil {
			return err
		}
		w.indexEntry(e)
		e.Release()
	}
	w.flushSubstrings()

	closeEl := queue.NewSyncElement(queue.ActionClose, w.slotName, nil, nil, 0)
	w.q.Push(closeEl)
	closeEl.Reply()
	return nil
}

func (w *Worker) indexEntry(e *entry.Entry) {
	if e.HasFlag(entry.FlagTombstone) && !tombstoneAttrs[w.Attribute] {
		return
	}

	values := e.GetAttr(w.Attribute)
	if len(values) == 0 {
		return
	}
	idData := kv.EncodeEID(kv.EID(e.ID))

	if w.Mask&IndexPresence != 0 {
		w.q.Push(queue.NewAsyncElement(queue.ActionAddIndex, w.slotName, presenceKey(w.Attribute), idData, 16))
	}
	if w.Mask&IndexEquality != 0 {
		for _, v := range values {
			key := equalityKey(w.Attribute, v)
			w.q.Push(queue.NewAsyncElement(queue.ActionAddIndex, w.slotName, key, idData, int64(len(key))+16))
		}
	}
	if w.Mask&IndexSubstring != 0 {
		for _, v := range values {
			for _, tok := range substringTokens(v) {
				w.bufferSubstring(tok, e.ID)
			}
		}
	}
}

func (w *Worker) bufferSubstring(token string, id uint32) {
	key := substringKey(w.Attribute, token)
	list := w.substringBuf[string(key)]
	list = append(list, kv.EncodeEID(kv.EID(id))...)
	w.substringBuf[string(key)] = list
}

func (w *Worker) flushSubstrings() {
	for key, ids := range w.substringBuf {
		for i := 0; i+4 <= len(ids); i += 4 {
			w.q.Push(queue.NewAsyncElement(queue.ActionAddIndex, w.slotName, []byte(key), ids[i:i+4], int64(len(key))+16))
		}
	}
	w.substringBuf = make(map[string][]byte)
}

func presenceKey(attr string) []byte {
	return []byte(attr + "\x00*")
}

func equalityKey(attr, value string) []byte {
	return []byte(attr + "\x00=" + strings.ToLower(value))
}

func substringKey(attr, token string) []byte {
	return []byte(attr + "\x00~" + token)
}

// substringTokens emits 3-gram substrings of v, the standard ngram
// decomposition for (attr=*xyz*) substring searches.
func substringTokens(v string) []string {
	v = strings.ToLower(v)
	const n = 3
	if len(v) < n {
		return []string{v}
	}
	out := make([]string, 0, len(v)-n+1)
	for i := 0; i+n <= len(v); i++ {
		out = append(out, v[i:i+n])
	}
	return out
}
