package producer

import (
	"fmt"

	"github.com/oba-ldap/obacore/internal/importer/entry"
	"github.com/oba-ldap/obacore/internal/kv"
	"github.com/oba-ldap/obacore/internal/ldif"
)

// ReindexSource implements Source by walking id2entry via a read-only
// cursor instead of parsing LDIF (spec.md §4.5 "Reindex producer
// variant"). It owns a single read-only transaction for the producer's
// whole run (spec.md I3: readers open their txn before any writer
// activity begins).
type ReindexSource struct {
	txn    *kv.Txn
	cursor *kv.Cursor
	dbi    kv.DBI

	entryRDN    kv.DBI
	haveRDN     bool
	subtreeMode bool

	dnCache map[uint32]string
	first   bool
	lastID  uint32
}

// NewReindexSource opens its own read-only transaction against env and
// positions a cursor over the id2entry DBI.
func NewReindexSource(env *kv.Env, id2entryDBI kv.DBI, entryRDNDBI kv.DBI, haveEntryRDN, subtreeMode bool) (*ReindexSource, error) {
	txn, err := env.TxnBegin(false)
	if err != nil {
		return nil, err
	}
	c, err := txn.CursorOpen(id2entryDBI)
	if err != nil {
		txn.Abort()
		return nil, err
	}
	return &ReindexSource{
		txn: txn, cursor: c, dbi: id2entryDBI,
		entryRDN: entryRDNDBI, haveRDN: haveEntryRDN, subtreeMode: subtreeMode,
		dnCache: make(map[uint32]string),
		first:   true,
	}, nil
}

// Next decodes the next id2entry record in cursor order (spec.md §4.5:
// "walks via cursor FIRST->NEXT, decodes each stored entry").
func (r *ReindexSource) Next() (*ldif.Record, bool, error) {
	op := kv.OpNext
	if r.first {
		op = kv.OpFirst
		r.first = false
	}
	k, v, err := r.cursor.Get(nil, nil, op)
	if err == kv.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	id := kv.DecodeEID(k)
	r.lastID = uint32(id)
	e, err := entry.Decode(uint32(id), v)
	if err != nil {
		return nil, false, fmt.Errorf("reindex: decoding id %d: %w", id, err)
	}

	dn := e.DN
	if r.subtreeMode && looksLikeRDN(dn) {
		dn, err = r.reconstructDN(uint32(id), dn)
		if err != nil {
			return nil, false, err
		}
	}
	r.dnCache[uint32(id)] = dn

	attrs := make(map[string][]string, len(e.Attrs))
	for _, a := range e.Attrs {
		attrs[a.Name] = a.Values
	}
	return &ldif.Record{DN: dn, Attrs: attrs}, true, nil
}

// looksLikeRDN reports whether dn is a bare RDN (no comma-separated
// suffix) rather than a full DN, the subtree-rename on-disk shape
// spec.md §4.5 describes.
func looksLikeRDN(dn string) bool {
	for i := 0; i < len(dn); i++ {
		if dn[i] == ',' && (i == 0 || dn[i-1] != '\\') {
			return false
		}
	}
	return true
}

// reconstructDN walks parent IDs upward via entryrdn until it reaches a
// full DN, caching intermediate results (spec.md §4.5). When the entryrdn
// table is absent, or holds no record for id, rdn is returned unchanged;
// no parentid chain is consulted.
func (r *ReindexSource) reconstructDN(id uint32, rdn string) (string, error) {
	if cached, ok := r.dnCache[id]; ok {
		return cached, nil
	}
	if !r.haveRDN {
		return rdn, nil // no entryrdn table: the RDN is returned as is
	}

	key := kv.EncodeEID(kv.EID(id))
	val, err := r.txn.Get(r.entryRDN, key)
	if err == kv.ErrNotFound {
		return rdn, nil
	}
	if err != nil {
		return "", err
	}
	parentID := kv.DecodeEID(val[:4])
	parentDN, err := r.parentDN(uint32(parentID))
	if err != nil {
		return "", err
	}
	full := rdn + "," + parentDN
	r.dnCache[id] = full
	return full, nil
}

func (r *ReindexSource) parentDN(id uint32) (string, error) {
	if id == 0 {
		return "", nil
	}
	if cached, ok := r.dnCache[id]; ok {
		return cached, nil
	}
	blob, err := r.txn.Get(r.dbi, kv.EncodeEID(kv.EID(id)))
	if err != nil {
		return "", err
	}
	e, err := entry.Decode(id, blob)
	if err != nil {
		return "", err
	}
	if !looksLikeRDN(e.DN) {
		r.dnCache[id] = e.DN
		return e.DN, nil
	}
	return r.reconstructDN(id, e.DN)
}

// LastID returns the EID of the most recently decoded record, the key
// UpgradeDNSource needs to build conflict-file rows (spec.md §4.5).
func (r *ReindexSource) LastID() uint32 {
	return r.lastID
}

// Close releases the cursor and read-only transaction.
func (r *ReindexSource) Close() {
	r.cursor.Close()
	r.txn.Abort()
}
