package entrywsi

// Value is a single attribute value carrying the three optional CSNs
// spec.md §3 describes: value-updated (vucsn), value-deleted (vdcsn),
// value-distinguished (vdncsn).
type Value struct {
	Data  string
	VUCSN CSN
	VDCSN CSN
	VDNCSN CSN
}

// Attribute is the multi-valued representation: present values, deleted
// values (tombstoned, kept for conflict resolution), and an
// attribute-deletion CSN (adcsn) (spec.md §3, §4.10).
type Attribute struct {
	Name    string
	Present []Value
	Deleted []Value
	ADCSN   CSN
}

// ResolveMultiValued reconciles an incoming update against the current
// Attribute state (spec.md §4.10 "Multi-valued"). incoming carries the
// value being applied (with its vucsn/vdcsn set by the caller) and
// isDeleteAll reports whether this update is part of a delete-all-values
// operation, which relaxes the tie-break on `max(vdcsn, adcsn) == vucsn`.
func ResolveMultiValued(attr *Attribute, incoming Value, isDeleteAll bool) {
	upsertPresent(attr, incoming)

	// Purge each present value's deletion CSN if it is older than the
	// value's own update/distinguished CSN (spec.md: "purge the value's
	// deletion CSN if older than its update/distinguished CSN").
	for i := range attr.Present {
		v := &attr.Present[i]
		newest := Max(v.VUCSN, v.VDNCSN)
		if v.VDCSN.Less(newest) {
			v.VDCSN = Zero
		}
	}

	// Move values whose deletion/attribute-deletion CSN dominates their
	// update CSN to the deleted set, unless the value was distinguished
	// at the effective deletion time.
	var stillPresent []Value
	for _, v := range attr.Present {
		effDelete := Max(v.VDCSN, attr.ADCSN)
		shouldDelete := effDelete.Greater(v.VUCSN) || (effDelete.Equal(v.VUCSN) && isDeleteAll)
		if shouldDelete && !distinguishedAt(v, effDelete) {
			attr.Deleted = append(attr.Deleted, v)
			continue
		}
		stillPresent = append(stillPresent, v)
	}
	attr.Present = stillPresent

	// Symmetric scan: resurrect deleted values whose vucsn is newer than
	// their deletion CSN (spec.md: "Symmetric scan of the deleted set
	// resurrects values whose vucsn is newer").
	var stillDeleted []Value
	for _, v := range attr.Deleted {
		effDelete := Max(v.VDCSN, attr.ADCSN)
		if v.VUCSN.Greater(effDelete) {
			attr.Present = append(attr.Present, v)
			continue
		}
		stillDeleted = append(stillDeleted, v)
	}
	attr.Deleted = stillDeleted
}

// upsertPresent inserts or replaces incoming in attr.Present by Data,
// keeping insertion order for determinism (spec.md §3: "ordered by
// insertion for determinism").
func upsertPresent(attr *Attribute, incoming Value) {
	for i, v := range attr.Present {
		if v.Data == incoming.Data {
			attr.Present[i] = mergeCSNs(v, incoming)
			return
		}
	}
	for i, v := range attr.Deleted {
		if v.Data == incoming.Data {
			merged := mergeCSNs(v, incoming)
			attr.Deleted = append(attr.Deleted[:i], attr.Deleted[i+1:]...)
			attr.Present = append(attr.Present, merged)
			return
		}
	}
	attr.Present = append(attr.Present, incoming)
}

func mergeCSNs(existing, incoming Value) Value {
	return Value{
		Data:   existing.Data,
		VUCSN:  Max(existing.VUCSN, incoming.VUCSN),
		VDCSN:  Max(existing.VDCSN, incoming.VDCSN),
		VDNCSN: Max(existing.VDNCSN, incoming.VDNCSN),
	}
}

// distinguishedAt reports whether v was the RDN value in effect at csn,
// i.e. v.VDNCSN straddles csn from below (spec.md's "unless the value
// was distinguished at the effective deletion time").
func distinguishedAt(v Value, csn CSN) bool {
	return !v.VDNCSN.IsZero() && v.VDNCSN.LessEq(csn)
}

// MultiValuedIsEmpty reports whether attr's present set is now empty,
// the trigger spec.md §4.10 names for moving the whole attribute to the
// deleted-attribute list ("If the resulting present set is empty, move
// the attribute to the deleted-attribute list; otherwise move it back
// to the present list").
func MultiValuedIsEmpty(attr *Attribute) bool {
	return len(attr.Present) == 0
}

// SingleValued models a single-valued attribute's compressed state:
// current value, a pending challenger, and a deletion CSN (spec.md §3,
// §4.10 "Single-valued").
type SingleValued struct {
	Current   *Value
	Pending   *Value
	Deletion  CSN
}

// ApplySingleValued resolves an incoming value against s (spec.md §4.10
// "Single-valued"). fullReplace preserves an explicit open question in
// spec.md about whether a full-replace (as opposed to a single modify)
// changes the delete-priority ordering; this implementation keeps the
// same CSN-comparison rule either way and only uses fullReplace to skip
// the "promote to pending" path, since a replace has no prior value to
// defer to.
func ApplySingleValued(s *SingleValued, incoming Value, fullReplace bool) {
	if s.Current == nil {
		s.Current = &incoming
		purgeDeletion(s)
		return
	}

	if incoming.VUCSN.Less(s.Current.VUCSN) {
		// Older update: promote only if the current value was
		// distinguished at its own vucsn (i.e. it is the authoritative
		// RDN value), otherwise discard the older incoming value.
		if distinguishedAt(*s.Current, s.Current.VUCSN) {
			promote(s, incoming)
		}
		// else: discard
		purgeDeletion(s)
		return
	}

	// incoming is newer than (or equal to) current.
	if !fullReplace && distinguishedAt(*s.Current, incoming.VUCSN) {
		// current is still distinguished at incoming's time: incoming
		// becomes the pending challenger instead of replacing current.
		s.Pending = &incoming
	} else {
		s.Current = &incoming
		s.Pending = nil
	}
	purgeDeletion(s)
}

func promote(s *SingleValued, v Value) {
	s.Current = &v
}

// purgeDeletion clears s.Deletion once it precedes the current value's
// effective CSN (spec.md: "After the update, purge the deletion CSN if
// it precedes the effective value CSN").
func purgeDeletion(s *SingleValued) {
	if s.Current == nil {
		return
	}
	effective := Max(s.Current.VUCSN, s.Current.VDNCSN)
	if s.Deletion.Less(effective) {
		s.Deletion = Zero
	}
}

// ValueDistinguishedAt answers spec.md §4.10's "value-distinguished-at
// (CSN)" query: scans every present/deleted value across attrs and
// returns the one whose vdncsn is <= target and >= the latest vdncsn
// seen so far. Ties (multi-valued RDN) return every tied value.
func ValueDistinguishedAt(attrs []*Attribute, target CSN) []Value {
	var best CSN
	var winners []Value
	for _, attr := range attrs {
		for _, pool := range [][]Value{attr.Present, attr.Deleted} {
			for _, v := range pool {
				if v.VDNCSN.IsZero() || v.VDNCSN.Greater(target) {
					continue
				}
				switch {
				case v.VDNCSN.Greater(best):
					best = v.VDNCSN
					winners = []Value{v}
				case v.VDNCSN.Equal(best):
					winners = append(winners, v)
				}
			}
		}
	}
	return winners
}

// ModOp is one modification within a replicated operation, prior to
// sub-sequence assignment.
type ModOp struct {
	AttrName string
	Value    string
	CSN      CSN // zero if the incoming operation omitted one
}

// ApplyModListWithCSN bumps a sub-sequence counter for each mod lacking
// its own CSN, guaranteeing absolute ordering across mods within a
// single replicated operation (spec.md §4.10's closing paragraph), then
// applies each resolved mod to its attribute via apply.
func ApplyModListWithCSN(mods []ModOp, base CSN, apply func(ModOp)) {
	subSeq := base.SubSeq
	for _, m := range mods {
		if m.CSN.IsZero() {
			subSeq++
			m.CSN = CSN{Time: base.Time, Seq: base.Seq, ReplicaID: base.ReplicaID, SubSeq: subSeq}
		}
		apply(m)
	}
}
