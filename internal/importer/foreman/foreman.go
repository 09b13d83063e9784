// Package foreman implements spec.md §4.6: the single goroutine that
// walks the FIFO ring in ID order, maintains the identity indexes
// (entrydn/entryrdn, parentid, id2entry), detects duplicate DNs, and
// approves each entry for the attribute workers.
package foreman

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/oba-ldap/obacore/internal/importer/entry"
	"github.com/oba-ldap/obacore/internal/importer/fifo"
	"github.com/oba-ldap/obacore/internal/importer/pause"
	"github.com/oba-ldap/obacore/internal/importer/queue"
	"github.com/oba-ldap/obacore/internal/kv"
	"github.com/oba-ldap/obacore/internal/logging"
)

// Table/slot names used across the pipeline (spec.md §6).
const (
	SlotID2Entry = "id2entry"
	SlotEntryRDN = "entryrdn"
	SlotEntryDN  = "entrydn"
	SlotParentID = "parentid"
)

// Config controls foreman behavior (spec.md §4.6).
type Config struct {
	SubtreeRename  bool // maintain entryrdn instead of legacy entrydn
	UpgradeDNMode  bool // rename duplicates instead of skipping them
	NumIndexers    int32
	SuffixDNs      []string // tree-root exception: parentless is allowed
	RUVEntryDN     string
}

// Foreman drives spec.md §4.6's per-entry steps.
type Foreman struct {
	cfg   Config
	ring  *fifo.Ring
	q     *queue.Queue
	log   logging.Logger

	firstID uint32
	lastID  uint32

	dnIndex   map[string]uint32 // in-process DN -> ID, mirrors the entrydn/entryrdn probe
	idToDN    map[uint32]string

	Skipped int

	// Gate pauses the foreman between entries (spec.md §4.9); nil means
	// the foreman never pauses. Set by job.New before Run is called.
	Gate *pause.Gate
}

// New builds a Foreman walking IDs [firstID, lastID].
func New(cfg Config, ring *fifo.Ring, q *queue.Queue, log logging.Logger, firstID, lastID uint32) *Foreman {
	if log == nil {
		log = logging.Nop()
	}
	return &Foreman{
		cfg: cfg, ring: ring, q: q, log: log,
		firstID: firstID, lastID: lastID,
		dnIndex: make(map[string]uint32),
		idToDN:  make(map[uint32]string),
	}
}

// Run processes IDs from firstID to lastID in order (spec.md P1).
func (f *Foreman) Run(ctx context.Context) error {
	for id := f.firstID; id <= f.lastID; id++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.Gate.Wait(ctx); err != nil {
			return err
		}
		e, err := f.ring.Fetch(ctx, id, false)
		if err != nil {
			return err
		}
		if err := f.processEntry(ctx, e); err != nil {
			return err
		}
		f.ring.AdvanceReady(id)
	}
	return nil
}

func (f *Foreman) processEntry(ctx context.Context, e *entry.Entry) error {
	if err := f.resolveParent(e); err != nil {
		f.log.Warn("foreman: skipping entry, parent unresolved", "dn", e.DN)
		f.Skipped++
		e.SetRefcount(0)
		return nil
	}

	if existing, ok := f.dnIndex[e.DN]; ok && existing != e.ID {
		if !f.cfg.UpgradeDNMode {
			f.log.Warn("foreman: duplicate DN, skipping", "dn", e.DN, "existingID", existing)
			f.Skipped++
			e.Flags |= entry.FlagBad
			e.SetRefcount(0)
			return nil
		}
		renamed, err := f.renameConflict(e)
		if err != nil {
			return fmt.Errorf("foreman: fatal, could not resolve duplicate DN %q: %w", e.DN, err)
		}
		e.DN = renamed
	}
	f.dnIndex[e.DN] = e.ID
	f.idToDN[e.ID] = e.DN

	if err := f.writeIdentity(e); err != nil {
		return err
	}

	if !e.HasFlag(entry.FlagTombstone) {
		if err := f.writeParentID(e); err != nil {
			return err
		}
	}

	e.SetRefcount(f.cfg.NumIndexers)
	return nil
}

// resolveParent injects the parent-id operational attribute, walking the
// DN for its immediate parent (spec.md §4.6 step 1). Suffix DNs and the
// RUV entry are allowed parentless (tree-root exception).
func (f *Foreman) resolveParent(e *entry.Entry) error {
	parentDN, isRoot := parentOf(e.DN)
	if isRoot || e.DN == f.cfg.RUVEntryDN || isSuffix(e.DN, f.cfg.SuffixDNs) {
		e.ParentID = 0
		return nil
	}
	parentID, ok := f.dnIndex[parentDN]
	if !ok {
		return fmt.Errorf("foreman: parent %q not yet materialized", parentDN)
	}
	e.ParentID = parentID
	return nil
}

func parentOf(dn string) (parent string, isRoot bool) {
	for i := 0; i < len(dn); i++ {
		if dn[i] == ',' && (i == 0 || dn[i-1] != '\\') {
			return dn[i+1:], false
		}
	}
	return "", true
}

func isSuffix(dn string, suffixes []string) bool {
	for _, s := range suffixes {
		if dn == s {
			return true
		}
	}
	return false
}

// renameConflict implements spec.md §4.6 step 2's upgrade-DN conflict
// resolution: rename to nsuniqueid=<uuid>+<original RDN>.
func (f *Foreman) renameConflict(e *entry.Entry) (string, error) {
	rdn, rest := splitRDN(e.DN)
	renamed := fmt.Sprintf("nsuniqueid=%s+%s%s", uuid.NewString(), rdn, rest)
	if _, exists := f.dnIndex[renamed]; exists {
		return "", fmt.Errorf("retry failed: renamed DN also conflicts")
	}
	return renamed, nil
}

func splitRDN(dn string) (rdn, rest string) {
	for i := 0; i < len(dn); i++ {
		if dn[i] == ',' && (i == 0 || dn[i-1] != '\\') {
			return dn[:i], dn[i:]
		}
	}
	return dn, ""
}

// writeIdentity maintains entryrdn/entrydn and id2entry (spec.md §4.6
// steps 2-3). The id2entry write is synchronous: the entry blob must be
// durable before any index references it (spec.md §4.6 step 3, I4).
func (f *Foreman) writeIdentity(e *entry.Entry) error {
	idKey := kv.EncodeEID(kv.EID(e.ID))
	blob := entry.Encode(e)

	idEl := queue.NewSyncElement(queue.ActionAdd, SlotID2Entry, idKey, blob, int64(len(blob)))
	f.q.Push(idEl)
	if rc := idEl.Reply(); rc != 0 {
		return fmt.Errorf("foreman: id2entry write failed for id %d", e.ID)
	}

	slotName := SlotEntryDN
	if f.cfg.SubtreeRename {
		slotName = SlotEntryRDN
	}
	f.q.Push(queue.NewAsyncElement(queue.ActionAddEntryRDN, slotName, []byte(e.DN), idKey, int64(len(e.DN))))
	return nil
}

// writeParentID inserts into the parentid index (spec.md §4.6 step 4).
func (f *Foreman) writeParentID(e *entry.Entry) error {
	parentKey := kv.EncodeEID(kv.EID(e.ParentID))
	idData := kv.EncodeEID(kv.EID(e.ID))
	f.q.Push(queue.NewAsyncElement(queue.ActionAddIndex, SlotParentID, parentKey, idData, 16))
	return nil
}
