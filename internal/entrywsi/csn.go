// Package entrywsi implements spec.md §4.10: reconciling an entry's
// multi-valued and single-valued attributes against CSN-ordered updates
// from concurrent/replicated modifications ("write-state interpretation").
package entrywsi

import (
	"fmt"
	"strconv"
	"strings"
)

// CSN is a change-sequence-number: wall-clock seconds, a per-second
// sub-sequence counter, a replica ID, and a sub-op counter, ordered
// lexicographically in that field order (spec.md glossary "csn").
type CSN struct {
	Time     uint32
	Seq      uint16
	ReplicaID uint16
	SubSeq   uint16
}

// Zero is the empty CSN, sorting before every real CSN.
var Zero = CSN{}

// Compare returns -1, 0, or 1 comparing a to b field-by-field.
func (a CSN) Compare(b CSN) int {
	switch {
	case a.Time != b.Time:
		return cmpUint32(a.Time, b.Time)
	case a.Seq != b.Seq:
		return cmpUint16(a.Seq, b.Seq)
	case a.ReplicaID != b.ReplicaID:
		return cmpUint16(a.ReplicaID, b.ReplicaID)
	default:
		return cmpUint16(a.SubSeq, b.SubSeq)
	}
}

func (a CSN) Less(b CSN) bool    { return a.Compare(b) < 0 }
func (a CSN) LessEq(b CSN) bool  { return a.Compare(b) <= 0 }
func (a CSN) Greater(b CSN) bool { return a.Compare(b) > 0 }
func (a CSN) Equal(b CSN) bool   { return a.Compare(b) == 0 }
func (a CSN) IsZero() bool       { return a == Zero }

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint16(a, b uint16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Max returns the greater of a, b.
func Max(a, b CSN) CSN {
	if a.Greater(b) {
		return a
	}
	return b
}

// String renders a CSN in the canonical "time seq replicaid subseq" hex
// form used on the wire and in LDIF (spec.md glossary "csn").
func (a CSN) String() string {
	return fmt.Sprintf("%08x%04x%04x%04x", a.Time, a.Seq, a.ReplicaID, a.SubSeq)
}

// ParseCSN parses the canonical 20-hex-digit CSN string form.
func ParseCSN(s string) (CSN, error) {
	s = strings.TrimSpace(s)
	if len(s) != 20 {
		return CSN{}, fmt.Errorf("entrywsi: malformed csn %q", s)
	}
	t, err := strconv.ParseUint(s[0:8], 16, 32)
	if err != nil {
		return CSN{}, err
	}
	seq, err := strconv.ParseUint(s[8:12], 16, 16)
	if err != nil {
		return CSN{}, err
	}
	rid, err := strconv.ParseUint(s[12:16], 16, 16)
	if err != nil {
		return CSN{}, err
	}
	sub, err := strconv.ParseUint(s[16:20], 16, 16)
	if err != nil {
		return CSN{}, err
	}
	return CSN{Time: uint32(t), Seq: uint16(seq), ReplicaID: uint16(rid), SubSeq: uint16(sub)}, nil
}
