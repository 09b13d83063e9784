package acl

import "github.com/oba-ldap/obacore/internal/plist"

// Term is one leaf test in a clause's boolean expression (spec.md
// §4.11's "expression tree", each node a term plus true/false
// successor indices).
type Term struct {
	Attribute  string // term name: ip, dns, dnsalias, timeofday, dayofweek, user, group
	Comparator Comparator
	Operand    string // literal or comma-separated list, per term grammar

	// TrueNext/FalseNext index into the clause's Terms slice; -1 means
	// "this outcome decides the clause" (spec.md §4.11: "chooses the next
	// term index (true-successor or false-successor), short-circuiting
	// naturally").
	TrueNext  int
	FalseNext int

	Absolute bool // ABSOLUTE: fixes the right's result once true
}

// termEvaluator resolves a term's outcome against subject/resource
// plists, late-bound by attribute name at compile time (spec.md §4.11
// "a late-bound evaluator function is resolved by attribute name").
type termEvaluator func(t *Term, subject, resource *plist.Plist, groups GroupResolver) (Outcome, Cachability)

var termEvaluators = map[string]termEvaluator{
	"ip":        evalIP,
	"dns":       evalDNS,
	"dnsalias":  evalDNS,
	"timeofday": evalTimeOfDay,
	"dayofweek": evalDayOfWeek,
	"user":      evalUser,
	"group":     evalGroup,
}

// resolve picks the late-bound evaluator for t, defaulting to an
// unconditional decline for unknown attribute names (spec.md §4.11:
// unrecognised terms should never silently allow).
func (t *Term) resolve() termEvaluator {
	if fn, ok := termEvaluators[t.Attribute]; ok {
		return fn
	}
	return func(*Term, *plist.Plist, *plist.Plist, GroupResolver) (Outcome, Cachability) {
		return EvalDecline, NotCachable
	}
}

// Clause is one compiled ALLOW/DENY/AUTH/RESPONSE statement (spec.md
// §4.11's compile phase, steps 2-4).
type Clause struct {
	Seq   int
	Type  ClauseType
	Right Right // rights this clause grants/denies (ALLOW/DENY only)

	Terms    []Term // expression tree, root at index 0; empty means "always true"
	Absolute bool    // any term flagged ABSOLUTE

	// AUTH fields.
	AuthPlist         *plist.Plist // snapshot of "current auth" at this clause (Dup'd per spec.md step 3)
	AuthAbsolute      bool

	// RESPONSE fields.
	DenyType    string
	DenyMessage string
}

// evalClause walks the clause's term tree from root, returning the
// clause's own outcome and the minimum cachability observed (spec.md
// §4.11's evaluate phase).
func evalClause(c *Clause, subject, resource *plist.Plist, groups GroupResolver) (Outcome, Cachability, bool) {
	if len(c.Terms) == 0 {
		return EvalTrue, IndefCachable, false
	}

	idx := 0
	cachability := IndefCachable
	absoluteFired := false
	for {
		t := &c.Terms[idx]
		outcome, cache := t.resolve()(t, subject, resource, groups)
		cachability = cachability.Min(cache)

		if outcome == EvalTrue && t.Absolute {
			absoluteFired = true
		}

		var next int
		switch outcome {
		case EvalTrue:
			next = t.TrueNext
		case EvalFalse:
			next = t.FalseNext
		default:
			// invalid/decline/need-more-info terminates evaluation early,
			// per spec.md §4.11's result-translation table.
			return outcome, cachability, absoluteFired
		}

		if next < 0 {
			return outcome, cachability, absoluteFired
		}
		idx = next
	}
}
