package kv

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// AllIDsThreshold is the number of entry IDs a per-key ID list may hold
// before it collapses to the ALLIDS sentinel (spec.md §4.6 step 4: the
// idl-disposition crossing NOW_ALLIDS/ALLIDS notifies the subordinate-count
// accumulator). No pack library models this ALLIDS collapse directly, so
// the threshold policy itself stays hand-rolled on top of a roaring
// bitmap, which is used purely as the compressed ID-list representation.
const AllIDsThreshold = 4000

// Disposition reports what happened to an index entry's ID list as a
// result of an insert/delete, mirroring spec.md §4.8's apply_op table
// ("stable-storage the returned disposition in the slot").
type Disposition int

const (
	DispositionNormal Disposition = iota
	DispositionNowAllIDs
	DispositionAllIDs
)

// IDList is an ordered, compressed set of entry IDs for one index key.
type IDList struct {
	bm      *roaring.Bitmap
	allIDs  bool
}

// NewIDList returns an empty IDList.
func NewIDList() *IDList {
	return &IDList{bm: roaring.New()}
}

// DecodeIDList deserializes an IDList from its stored byte representation.
// An empty/nil buf with allIDs=true reconstructs the ALLIDS sentinel.
func DecodeIDList(buf []byte, allIDs bool) (*IDList, error) {
	if allIDs {
		return &IDList{bm: roaring.New(), allIDs: true}, nil
	}
	bm := roaring.New()
	if len(buf) > 0 {
		if _, err := bm.FromBuffer(buf); err != nil {
			return nil, err
		}
	}
	return &IDList{bm: bm}, nil
}

// Encode serializes the IDList. When the list is ALLIDS, the byte slice is
// empty and the caller must consult IsAllIDs to interpret it correctly.
func (l *IDList) Encode() []byte {
	if l.allIDs {
		return nil
	}
	buf, _ := l.bm.ToBytes()
	return buf
}

// IsAllIDs reports whether this list has collapsed to the ALLIDS sentinel.
func (l *IDList) IsAllIDs() bool {
	return l.allIDs
}

// Add inserts id into the list, returning the resulting Disposition.
// Crossing AllIDsThreshold collapses the list to ALLIDS (at-most-once:
// once collapsed, further adds are no-ops).
func (l *IDList) Add(id EID) Disposition {
	if l.allIDs {
		return DispositionAllIDs
	}
	l.bm.Add(uint32(id))
	if l.bm.GetCardinality() > AllIDsThreshold {
		l.bm = roaring.New()
		l.allIDs = true
		return DispositionNowAllIDs
	}
	return DispositionNormal
}

// Remove deletes id from the list, a no-op once the list is ALLIDS (an
// ALLIDS list never shrinks back, mirroring the source's terminal
// semantics for index disposition).
func (l *IDList) Remove(id EID) {
	if l.allIDs {
		return
	}
	l.bm.Remove(uint32(id))
}

// Contains reports whether id is present; an ALLIDS list contains every ID.
func (l *IDList) Contains(id EID) bool {
	if l.allIDs {
		return true
	}
	return l.bm.Contains(uint32(id))
}

// Cardinality returns the number of IDs represented (undefined/unbounded
// for ALLIDS lists, reported as -1).
func (l *IDList) Cardinality() int64 {
	if l.allIDs {
		return -1
	}
	return int64(l.bm.GetCardinality())
}

// ToSlice returns the sorted IDs in the list (empty for ALLIDS).
func (l *IDList) ToSlice() []EID {
	if l.allIDs {
		return nil
	}
	raw := l.bm.ToArray()
	out := make([]EID, len(raw))
	for i, v := range raw {
		out[i] = EID(v)
	}
	return out
}
