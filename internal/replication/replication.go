// Package replication defines the narrow contract the producer uses when
// its input is a streamed replication session rather than an LDIF file
// (spec.md §1, §2's Producer row: "Reads LDIF or streamed entries"). The
// real replication transport is out of scope; this package only carries
// the interface and a canned test double.
package replication

import "github.com/oba-ldap/obacore/internal/ldif"

// Source yields entries from a live replication session.
type Source interface {
	Next() (*ldif.Record, bool, error)
}

// StaticSource replays a fixed, in-memory list of records — the test
// double standing in for a real replication session.
type StaticSource struct {
	records []*ldif.Record
	pos     int
}

// NewStaticSource builds a StaticSource over records.
func NewStaticSource(records []*ldif.Record) *StaticSource {
	return &StaticSource{records: records}
}

// Next implements Source.
func (s *StaticSource) Next() (*ldif.Record, bool, error) {
	if s.pos >= len(s.records) {
		return nil, false, nil
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, true, nil
}
