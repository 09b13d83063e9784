package entrywsi

import "testing"

func TestCSNCompareOrdersByField(t *testing.T) {
	cases := []struct {
		name     string
		a, b     CSN
		wantLess bool
	}{
		{"time dominates", CSN{Time: 1}, CSN{Time: 2}, true},
		{"seq breaks time tie", CSN{Time: 5, Seq: 1}, CSN{Time: 5, Seq: 2}, true},
		{"replica breaks seq tie", CSN{Time: 5, Seq: 1, ReplicaID: 1}, CSN{Time: 5, Seq: 1, ReplicaID: 2}, true},
		{"subseq breaks replica tie", CSN{Time: 5, Seq: 1, ReplicaID: 1, SubSeq: 1}, CSN{Time: 5, Seq: 1, ReplicaID: 1, SubSeq: 2}, true},
		{"equal", CSN{Time: 1, Seq: 1, ReplicaID: 1, SubSeq: 1}, CSN{Time: 1, Seq: 1, ReplicaID: 1, SubSeq: 1}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.a.Less(c.b); got != c.wantLess {
				t.Errorf("Less(%v, %v) = %v, want %v", c.a, c.b, got, c.wantLess)
			}
			if c.a.Equal(c.b) == c.wantLess {
				t.Errorf("Equal inconsistent with Less for %v, %v", c.a, c.b)
			}
		})
	}
}

func TestCSNZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero.IsZero() = false")
	}
	if (CSN{Time: 1}).IsZero() {
		t.Fatal("non-zero CSN reported as zero")
	}
}

func TestCSNMax(t *testing.T) {
	a := CSN{Time: 1}
	b := CSN{Time: 2}
	if got := Max(a, b); got != b {
		t.Errorf("Max(a, b) = %v, want %v", got, b)
	}
	if got := Max(b, a); got != b {
		t.Errorf("Max(b, a) = %v, want %v", got, b)
	}
}

func TestCSNStringRoundTrip(t *testing.T) {
	c := CSN{Time: 0x5f3b2a10, Seq: 0x0012, ReplicaID: 0x0034, SubSeq: 0x0056}
	s := c.String()
	if len(s) != 20 {
		t.Fatalf("String() length = %d, want 20", len(s))
	}
	got, err := ParseCSN(s)
	if err != nil {
		t.Fatalf("ParseCSN(%q): %v", s, err)
	}
	if got != c {
		t.Errorf("ParseCSN(String()) = %v, want %v", got, c)
	}
}

func TestParseCSNRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "short", "zzzzzzzzzzzzzzzzzzzz"} {
		if _, err := ParseCSN(s); err == nil {
			t.Errorf("ParseCSN(%q) succeeded, want error", s)
		}
	}
}
