// Package entry defines the in-memory decoded directory entry that flows
// through the bulk-import pipeline's FIFO ring (spec.md §3, §4.4).
package entry

import (
	"fmt"
	"sync/atomic"
)

// Flag bits carried on an Entry (spec.md §3).
type Flag uint32

const (
	FlagTombstone Flag = 1 << iota
	FlagCompatDN
	FlagBad
)

// RawAttribute is a single attribute/value-list pair as decoded from LDIF
// or from a stored id2entry blob, prior to CSN-aware resolution (that
// happens only for replicated modifications, in internal/entrywsi).
type RawAttribute struct {
	Name   string
	Values []string
}

// Entry is the producer-owned, worker/foreman-shared decoded record.
// Ownership: created by the producer; owned by its FIFO slot until every
// worker and the foreman have decremented refcount AND the foreman's
// ready ID has passed this entry's ID (spec.md §3, invariant I2).
type Entry struct {
	ID       uint32
	ParentID uint32
	DN       string
	Attrs    []RawAttribute
	Flags    Flag

	refcount atomic.Int32

	// SourceFile/SourceLine identify where this entry came from, for
	// ParseError/SchemaViolation reporting (spec.md §7).
	SourceFile string
	SourceLine int
}

// SetRefcount initializes the refcount to n (spec.md §4.6 step 6: the
// foreman sets it to the number of indexers once the entry is approved).
func (e *Entry) SetRefcount(n int32) {
	e.refcount.Store(n)
}

// Release decrements the refcount by one, returning the new value. A
// worker or the foreman calls this after it has finished consuming the
// entry.
func (e *Entry) Release() int32 {
	return e.refcount.Add(-1)
}

// Refcount returns the current refcount without mutating it.
func (e *Entry) Refcount() int32 {
	return e.refcount.Load()
}

// HasFlag reports whether f is set.
func (e *Entry) HasFlag(f Flag) bool {
	return e.Flags&f != 0
}

// GetAttr returns the raw values for name, or nil if absent.
func (e *Entry) GetAttr(name string) []string {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Values
		}
	}
	return nil
}

// SetAttr replaces (or appends) the named attribute's values.
func (e *Entry) SetAttr(name string, values ...string) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Values = values
			return
		}
	}
	e.Attrs = append(e.Attrs, RawAttribute{Name: name, Values: values})
}

// ByteSize estimates the entry's memory footprint for FIFO ring and write
// queue weight accounting (spec.md §3, §4.4).
func (e *Entry) ByteSize() int64 {
	n := int64(len(e.DN)) + 16
	for _, a := range e.Attrs {
		n += int64(len(a.Name))
		for _, v := range a.Values {
			n += int64(len(v))
		}
	}
	return n
}

// Encode serializes e to its id2entry blob: a nul-terminated DN followed
// by nul-terminated "name:v1,v2,"-shaped attribute records. Kept
// intentionally simple; the wire format is a core-private concern, not a
// spec.md contract.
func Encode(e *Entry) []byte {
	buf := []byte(e.DN)
	buf = append(buf, 0)
	for _, a := range e.Attrs {
		buf = append(buf, []byte(a.Name)...)
		buf = append(buf, ':')
		for _, v := range a.Values {
			buf = append(buf, []byte(v)...)
			buf = append(buf, ',')
		}
		buf = append(buf, 0)
	}
	return buf
}

// Decode parses an id2entry blob produced by Encode back into an Entry
// with the given id (the blob itself carries no ID; it is the DBI key).
func Decode(id uint32, blob []byte) (*Entry, error) {
	nul := indexByte(blob, 0)
	if nul < 0 {
		return nil, fmt.Errorf("entry: decode: missing DN terminator")
	}
	e := &Entry{ID: id, DN: string(blob[:nul])}
	rest := blob[nul+1:]
	for len(rest) > 0 {
		end := indexByte(rest, 0)
		if end < 0 {
			break
		}
		record := rest[:end]
		rest = rest[end+1:]
		colon := indexByte(record, ':')
		if colon < 0 {
			continue
		}
		name := string(record[:colon])
		var values []string
		for _, part := range splitComma(record[colon+1:]) {
			if len(part) > 0 {
				values = append(values, string(part))
			}
		}
		if len(values) == 0 {
			continue
		}
		e.Attrs = append(e.Attrs, RawAttribute{Name: name, Values: values})
	}
	return e, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func splitComma(b []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range b {
		if c == ',' {
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, b[start:])
	}
	return out
}
