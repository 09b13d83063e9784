// Package backup implements spec.md §6's backup/restore LDIF dump contract:
// the core writes (and reads back) dse_instance.ldif (objectclass
// nsBackendInstance) and dse_index.ldif (objectclass nsIndex), one
// verbatim attribute-by-attribute entry per record, with numsubordinates
// excluded.
//
// Grounded on the teacher's internal/storage/snapshot package (which
// walks a table and streams it to a compressed file), combined with
// internal/ldif's Record/Scanner for the text format, and
// github.com/klauspost/compress/gzip in place of the teacher's stdlib
// compress/gzip for the throughput-sensitive dump/load path.
package backup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/oba-ldap/obacore/internal/importer/entry"
	"github.com/oba-ldap/obacore/internal/kv"
	"github.com/oba-ldap/obacore/internal/ldif"
)

// excludedAttr is stripped from every dumped entry (spec.md §6).
const excludedAttr = "numsubordinates"

// Dump scans every record in dbi (an id2entry-shaped table keyed by EID,
// values decodable by internal/importer/entry.Decode), keeps only
// entries carrying objectClass in their "objectclass" attribute, and
// writes them verbatim attribute-by-attribute to a gzip-compressed LDIF
// file at destPath (spec.md §6 "Backup/restore metadata").
func Dump(env *kv.Env, dbi kv.DBI, destPath, objectClass string) (int, error) {
	txn, err := env.TxnBegin(false)
	if err != nil {
		return 0, fmt.Errorf("backup: begin read txn: %w", err)
	}
	defer txn.Abort()

	cur, err := txn.CursorOpen(dbi)
	if err != nil {
		return 0, fmt.Errorf("backup: open cursor: %w", err)
	}
	defer cur.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("backup: create %s: %w", destPath, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	bw := bufio.NewWriter(gw)

	n := 0
	op := kv.OpFirst
	for {
		k, v, err := cur.Get(nil, nil, op)
		op = kv.OpNext
		if err == kv.ErrNotFound {
			break
		}
		if err != nil {
			return n, fmt.Errorf("backup: cursor walk: %w", err)
		}

		id := kv.DecodeEID(k)
		e, err := entry.Decode(uint32(id), v)
		if err != nil {
			return n, fmt.Errorf("backup: decode id2entry record %d: %w", id, err)
		}
		if !hasObjectClass(e, objectClass) {
			continue
		}
		if err := writeRecord(bw, e); err != nil {
			return n, fmt.Errorf("backup: write record for %q: %w", e.DN, err)
		}
		n++
	}

	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("backup: flush %s: %w", destPath, err)
	}
	if err := gw.Close(); err != nil {
		return n, fmt.Errorf("backup: close gzip stream for %s: %w", destPath, err)
	}
	return n, nil
}

func hasObjectClass(e *entry.Entry, want string) bool {
	for _, v := range e.GetAttr("objectclass") {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// writeRecord emits one entry as pair-per-line LDIF (attr: value),
// excluding numsubordinates, followed by a blank line separator
// (spec.md §6).
func writeRecord(w io.Writer, e *entry.Entry) error {
	if _, err := fmt.Fprintf(w, "dn: %s\n", e.DN); err != nil {
		return err
	}
	names := make([]string, 0, len(e.Attrs))
	for _, a := range e.Attrs {
		if strings.EqualFold(a.Name, excludedAttr) {
			continue
		}
		names = append(names, a.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range e.GetAttr(name) {
			if _, err := fmt.Fprintf(w, "%s: %s\n", name, v); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Load decompresses and parses a dump written by Dump, returning its
// records for a restore pass to feed back through the importer pipeline
// (the producer.Source interface is satisfied by internal/ldif.Scanner).
func Load(srcPath string) ([]*ldif.Record, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("backup: open %s: %w", srcPath, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("backup: gzip reader for %s: %w", srcPath, err)
	}
	defer gr.Close()

	s := ldif.NewScanner(gr, srcPath)
	var recs []*ldif.Record
	for {
		rec, ok, err := s.Next()
		if err != nil {
			return recs, fmt.Errorf("backup: parsing %s: %w", srcPath, err)
		}
		if !ok {
			break
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
