package acl

import (
	"testing"

	"github.com/oba-ldap/obacore/internal/plist"
)

func mustParse(t *testing.T, src string) []ParsedClause {
	t.Helper()
	clauses, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return clauses
}

func TestParseAllowDenyClause(t *testing.T) {
	clauses := mustParse(t, `allow (read,search) user = "cn=alice,dc=example,dc=com";`)
	if len(clauses) != 1 {
		t.Fatalf("got %d clauses, want 1", len(clauses))
	}
	c := clauses[0]
	if c.Type != ClauseAllow {
		t.Errorf("Type = %v, want ClauseAllow", c.Type)
	}
	if !c.Right.Has(Read) || !c.Right.Has(Search) {
		t.Errorf("Right = %v, missing read/search", c.Right)
	}
	term, ok := c.Expr.(astTerm)
	if !ok {
		t.Fatalf("Expr = %T, want astTerm", c.Expr)
	}
	if term.attribute != "user" || term.operand != "cn=alice,dc=example,dc=com" {
		t.Errorf("term = %+v", term)
	}
}

func TestParseBooleanPrecedence(t *testing.T) {
	// "not" binds tighter than "and", which binds tighter than "or".
	clauses := mustParse(t, `allow (read) user = a or user = b and not user = c;`)
	expr, ok := clauses[0].Expr.(astOr)
	if !ok {
		t.Fatalf("top level = %T, want astOr", clauses[0].Expr)
	}
	right, ok := expr.right.(astAnd)
	if !ok {
		t.Fatalf("or.right = %T, want astAnd", expr.right)
	}
	if _, ok := right.right.(astNot); !ok {
		t.Fatalf("and.right = %T, want astNot", right.right)
	}
}

func TestCompileFlattensNestedAnd(t *testing.T) {
	// Three-term AND chain: a and b and c. A naive flattener that only
	// patches the left operand's entry term (rather than its dangling
	// exit) would wire c as the successor of a instead of b.
	clauses := mustParse(t, `allow (read) user = a and user = b and user = c;`)
	list := Compile(clauses)
	terms := list.Clauses[0].Terms
	if len(terms) != 3 {
		t.Fatalf("got %d terms, want 3", len(terms))
	}

	// walk from term 0 on an all-true path, expect to visit all 3 then exit.
	idx := 0
	visited := 0
	for {
		visited++
		if visited > 10 {
			t.Fatal("walk did not terminate, likely a backpatch bug")
		}
		next := terms[idx].TrueNext
		if next < 0 {
			break
		}
		idx = next
	}
	if visited != 3 {
		t.Fatalf("visited %d terms on true path, want 3", visited)
	}
}

func TestCompileByRightBuckets(t *testing.T) {
	clauses := mustParse(t, `
		allow (read) user = anyone;
		allow (write) user = anyone;
		deny (read,write) user = bob;
	`)
	list := Compile(clauses)
	if len(list.ByRight[Read]) != 2 {
		t.Fatalf("ByRight[Read] = %v, want 2 entries", list.ByRight[Read])
	}
	if len(list.ByRight[Write]) != 2 {
		t.Fatalf("ByRight[Write] = %v, want 2 entries", list.ByRight[Write])
	}
}

func subjectWithUser(dn string) *plist.Plist {
	p := plist.New()
	p.SetSlot(plist.SlotUser, dn)
	return p
}

func TestEvaluatorAllowsMatchingUser(t *testing.T) {
	list := Compile(mustParse(t, `allow (read) user = "cn=alice,dc=example,dc=com";`))
	e := NewEvaluator(nil)
	e.SetACLList(list)
	e.SetSubject(subjectWithUser("cn=alice,dc=example,dc=com"))
	e.SetResource(plist.New())

	results := e.CheckRights([]Right{Read})
	if results[0].Decision != DecisionAllow {
		t.Fatalf("Decision = %v, want DecisionAllow", results[0].Decision)
	}
}

func TestEvaluatorDefaultDenyWithNoMatchingClause(t *testing.T) {
	list := Compile(mustParse(t, `allow (read) user = "cn=bob,dc=example,dc=com";`))
	e := NewEvaluator(nil)
	e.SetACLList(list)
	e.SetSubject(subjectWithUser("cn=alice,dc=example,dc=com"))
	e.SetResource(plist.New())

	results := e.CheckRights([]Right{Read})
	if results[0].Decision != DecisionDeny {
		t.Fatalf("Decision = %v, want DecisionDeny", results[0].Decision)
	}
}

func TestEvaluatorDenyShortCircuitsAllow(t *testing.T) {
	list := Compile(mustParse(t, `
		allow (read) user = anyone;
		deny (read) user = "cn=alice,dc=example,dc=com";
	`))
	e := NewEvaluator(nil)
	e.SetACLList(list)
	e.SetSubject(subjectWithUser("cn=alice,dc=example,dc=com"))
	e.SetResource(plist.New())

	results := e.CheckRights([]Right{Read})
	if results[0].Decision != DecisionDeny {
		t.Fatalf("Decision = %v, want DecisionDeny (deny must win)", results[0].Decision)
	}
}

func TestEvaluatorAbsoluteFixesDecision(t *testing.T) {
	list := Compile(mustParse(t, `
		allow (read) user = anyone absolute;
		deny (read) user = "cn=alice,dc=example,dc=com";
	`))
	e := NewEvaluator(nil)
	e.SetACLList(list)
	e.SetSubject(subjectWithUser("cn=alice,dc=example,dc=com"))
	e.SetResource(plist.New())

	results := e.CheckRights([]Right{Read})
	if results[0].Decision != DecisionAllow {
		t.Fatalf("Decision = %v, want DecisionAllow (absolute allow fixes the right before deny is reached)", results[0].Decision)
	}
}

type staticGroupResolver map[string]bool

func (s staticGroupResolver) IsMember(userDN, groupDN string) (bool, error) {
	return s[userDN+"|"+groupDN], nil
}

func TestEvaluatorGroupTerm(t *testing.T) {
	list := Compile(mustParse(t, `allow (read) group = "cn=admins,dc=example,dc=com";`))
	groups := staticGroupResolver{"cn=alice,dc=example,dc=com|cn=admins,dc=example,dc=com": true}
	e := NewEvaluator(groups)
	e.SetACLList(list)
	e.SetSubject(subjectWithUser("cn=alice,dc=example,dc=com"))
	e.SetResource(plist.New())

	results := e.CheckRights([]Right{Read})
	if results[0].Decision != DecisionAllow {
		t.Fatalf("Decision = %v, want DecisionAllow", results[0].Decision)
	}
}

func TestLoadFromBytesRoundTrip(t *testing.T) {
	list, err := LoadFromBytes([]byte(`allow (read) user = anyone;`))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	if len(list.Clauses) != 1 {
		t.Fatalf("got %d clauses, want 1", len(list.Clauses))
	}
}

func TestLoadFromBytesParseError(t *testing.T) {
	if _, err := LoadFromBytes([]byte(`allow (bogus-rights`)); err == nil {
		t.Fatal("expected a parse error")
	}
}
