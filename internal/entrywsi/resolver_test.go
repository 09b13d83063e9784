package entrywsi

import "testing"

func csn(t uint32) CSN { return CSN{Time: t} }

func TestResolveMultiValuedAddsNewValue(t *testing.T) {
	attr := &Attribute{Name: "mail"}
	ResolveMultiValued(attr, Value{Data: "a@example.com", VUCSN: csn(1)}, false)
	if len(attr.Present) != 1 || attr.Present[0].Data != "a@example.com" {
		t.Fatalf("Present = %+v, want single a@example.com", attr.Present)
	}
}

func TestResolveMultiValuedDeletesWhenDeletionDominates(t *testing.T) {
	attr := &Attribute{Name: "mail"}
	ResolveMultiValued(attr, Value{Data: "a@example.com", VUCSN: csn(1)}, false)
	attr.Present[0].VDCSN = csn(2)
	ResolveMultiValued(attr, Value{Data: "b@example.com", VUCSN: csn(3)}, false)

	if !MultiValuedIsEmpty(attr) {
		// b is present, so Present isn't empty, but a should have moved to Deleted.
	}
	found := false
	for _, v := range attr.Deleted {
		if v.Data == "a@example.com" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a@example.com moved to Deleted, got Present=%+v Deleted=%+v", attr.Present, attr.Deleted)
	}
}

func TestResolveMultiValuedResurrectsNewerUpdate(t *testing.T) {
	attr := &Attribute{Name: "mail"}
	ResolveMultiValued(attr, Value{Data: "a@example.com", VUCSN: csn(1)}, false)
	attr.Present[0].VDCSN = csn(2)
	ResolveMultiValued(attr, Value{Data: "b@example.com", VUCSN: csn(3)}, false) // moves a to Deleted

	// A later, newer update to "a" should resurrect it.
	ResolveMultiValued(attr, Value{Data: "a@example.com", VUCSN: csn(5)}, false)

	foundPresent := false
	for _, v := range attr.Present {
		if v.Data == "a@example.com" {
			foundPresent = true
		}
	}
	if !foundPresent {
		t.Fatalf("expected a@example.com resurrected into Present, got Present=%+v Deleted=%+v", attr.Present, attr.Deleted)
	}
}

func TestResolveMultiValuedPreservesDistinguishedValue(t *testing.T) {
	attr := &Attribute{Name: "cn"}
	ResolveMultiValued(attr, Value{Data: "alice", VUCSN: csn(1), VDNCSN: csn(1)}, false)
	// attribute-level delete at a later CSN should not purge a value that
	// was distinguished (the RDN value) at that time.
	attr.ADCSN = csn(2)
	ResolveMultiValued(attr, Value{Data: "alice", VUCSN: csn(1), VDNCSN: csn(1)}, false)

	found := false
	for _, v := range attr.Present {
		if v.Data == "alice" {
			found = true
		}
	}
	if !found {
		t.Fatalf("distinguished value should not be purged, got Present=%+v Deleted=%+v", attr.Present, attr.Deleted)
	}
}

func TestApplySingleValuedFirstValue(t *testing.T) {
	var s SingleValued
	ApplySingleValued(&s, Value{Data: "v1", VUCSN: csn(1)}, false)
	if s.Current == nil || s.Current.Data != "v1" {
		t.Fatalf("Current = %+v, want v1", s.Current)
	}
}

func TestApplySingleValuedNewerReplacesCurrent(t *testing.T) {
	var s SingleValued
	ApplySingleValued(&s, Value{Data: "v1", VUCSN: csn(1)}, false)
	ApplySingleValued(&s, Value{Data: "v2", VUCSN: csn(2)}, false)
	if s.Current.Data != "v2" {
		t.Fatalf("Current.Data = %q, want v2", s.Current.Data)
	}
}

func TestApplySingleValuedOlderDiscardedWhenNotDistinguished(t *testing.T) {
	var s SingleValued
	ApplySingleValued(&s, Value{Data: "v2", VUCSN: csn(5)}, false)
	ApplySingleValued(&s, Value{Data: "v1", VUCSN: csn(1)}, false)
	if s.Current.Data != "v2" {
		t.Fatalf("older update should be discarded, Current.Data = %q", s.Current.Data)
	}
	if s.Pending != nil {
		t.Fatalf("Pending should stay nil when current isn't distinguished, got %+v", s.Pending)
	}
}

func TestApplySingleValuedNewerBecomesPendingWhenCurrentDistinguished(t *testing.T) {
	var s SingleValued
	ApplySingleValued(&s, Value{Data: "v1", VUCSN: csn(1), VDNCSN: csn(1)}, false)
	ApplySingleValued(&s, Value{Data: "v2", VUCSN: csn(2)}, false)

	if s.Current.Data != "v1" {
		t.Fatalf("Current.Data = %q, want v1 (still distinguished)", s.Current.Data)
	}
	if s.Pending == nil || s.Pending.Data != "v2" {
		t.Fatalf("Pending = %+v, want v2", s.Pending)
	}
}

func TestApplySingleValuedFullReplaceSkipsPending(t *testing.T) {
	var s SingleValued
	ApplySingleValued(&s, Value{Data: "v1", VUCSN: csn(1), VDNCSN: csn(1)}, false)
	ApplySingleValued(&s, Value{Data: "v2", VUCSN: csn(2)}, true)

	if s.Current.Data != "v2" {
		t.Fatalf("full replace should always take Current, got %q", s.Current.Data)
	}
	if s.Pending != nil {
		t.Fatalf("full replace should never populate Pending, got %+v", s.Pending)
	}
}

func TestValueDistinguishedAt(t *testing.T) {
	attrs := []*Attribute{
		{Name: "cn", Present: []Value{
			{Data: "alice", VDNCSN: csn(1)},
			{Data: "al", VDNCSN: csn(3)},
		}},
	}
	winners := ValueDistinguishedAt(attrs, csn(2))
	if len(winners) != 1 || winners[0].Data != "alice" {
		t.Fatalf("ValueDistinguishedAt(target=2) = %+v, want [alice]", winners)
	}

	winners = ValueDistinguishedAt(attrs, csn(3))
	if len(winners) != 1 || winners[0].Data != "al" {
		t.Fatalf("ValueDistinguishedAt(target=3) = %+v, want [al]", winners)
	}
}

func TestApplyModListWithCSNBumpsSubSeq(t *testing.T) {
	base := CSN{Time: 10, Seq: 1, ReplicaID: 1, SubSeq: 0}
	mods := []ModOp{
		{AttrName: "cn", Value: "a"},
		{AttrName: "cn", Value: "b"},
	}
	var applied []ModOp
	ApplyModListWithCSN(mods, base, func(m ModOp) { applied = append(applied, m) })

	if len(applied) != 2 {
		t.Fatalf("applied %d mods, want 2", len(applied))
	}
	if applied[0].CSN.SubSeq != 1 || applied[1].CSN.SubSeq != 2 {
		t.Fatalf("subseq not bumped in order: %+v", applied)
	}
	if applied[0].CSN.Time != base.Time || applied[0].CSN.ReplicaID != base.ReplicaID {
		t.Fatalf("mod CSN lost base fields: %+v", applied[0].CSN)
	}
}

func TestApplyModListWithCSNKeepsExplicitCSN(t *testing.T) {
	base := CSN{Time: 10, Seq: 1, ReplicaID: 1, SubSeq: 0}
	explicit := CSN{Time: 99, Seq: 9, ReplicaID: 9, SubSeq: 9}
	mods := []ModOp{{AttrName: "cn", Value: "a", CSN: explicit}}
	var applied []ModOp
	ApplyModListWithCSN(mods, base, func(m ModOp) { applied = append(applied, m) })
	if applied[0].CSN != explicit {
		t.Fatalf("explicit CSN overwritten: %+v", applied[0].CSN)
	}
}
