package acl

import "github.com/oba-ldap/obacore/internal/plist"

// CompiledList is the rights-indexed decision structure spec.md §4.11's
// compile phase produces: a clause sequence plus, per right, the sorted
// list of clause indices that mention it.
type CompiledList struct {
	Clauses []*Clause
	ByRight map[Right][]int // right -> ascending indices into Clauses

	DenyType    string
	DenyMessage string
}

// Compile walks parsed in declaration order, bucketing ALLOW/DENY
// clauses by right, threading AUTH plist snapshots, and recording
// RESPONSE deny-type/message (spec.md §4.11 "Compile phase").
func Compile(parsed []ParsedClause) *CompiledList {
	cl := &CompiledList{ByRight: make(map[Right][]int)}

	currentAuth := plist.New()
	absoluteAuth := plist.New()

	for i, pc := range parsed {
		switch pc.Type {
		case ClauseAllow, ClauseDeny:
			c := &Clause{
				Seq:   i,
				Type:  pc.Type,
				Right: pc.Right,
				Terms: compileExpr(pc.Expr),
			}
			for _, t := range c.Terms {
				if t.Absolute {
					c.Absolute = true
					break
				}
			}
			c.AuthPlist = currentAuth.Dup()
			cl.Clauses = append(cl.Clauses, c)
			idx := len(cl.Clauses) - 1
			for _, right := range allRights {
				if pc.Right.Has(right) {
					cl.ByRight[right] = append(cl.ByRight[right], idx)
				}
			}

		case ClauseAuth:
			for name, val := range pc.AuthAttrs {
				if _, locked := absoluteAuthGet(absoluteAuth, name); locked {
					continue // an earlier ABSOLUTE AUTH owns this attribute
				}
				currentAuth.Set(name, val)
			}
			if pc.AuthAbsolute {
				for name, val := range pc.AuthAttrs {
					absoluteAuth.Set(name, val)
				}
			}
			// AUTH clauses never grant/deny; spec.md §4.11 step 3: they
			// only update the running auth context for later clauses.

		case ClauseResponse:
			cl.DenyType = pc.DenyType
			cl.DenyMessage = pc.DenyMessage
		}
	}

	return cl
}

func absoluteAuthGet(p *plist.Plist, name string) (string, bool) {
	return p.Get(name)
}

var allRights = []Right{Read, Write, Add, Delete, Search, Compare, HTTPGet}

// compileExpr flattens an AST boolean expression into a Term slice with
// true/false successor indices, the "boolean expression array" spec.md
// §4.11 describes. Root is always index 0. Uses the standard backpatch-
// list technique (build each subexpression with its true/false exits
// left dangling, then let the parent combinator wire them) so deeply
// nested AND/OR chains link correctly instead of only their entry term.
func compileExpr(n astNode) []Term {
	if n == nil {
		return nil
	}
	var terms []Term
	_, trueExits, falseExits := build(n, &terms)
	for _, i := range trueExits {
		terms[i].TrueNext = -1 // dangling true exit decides the clause
	}
	for _, i := range falseExits {
		terms[i].FalseNext = -1 // dangling false exit decides the clause
	}
	return terms
}

// build appends n's terms to *terms and returns its entry index plus the
// lists of term indices whose TrueNext/FalseNext are still dangling,
// waiting for the enclosing combinator (or compileExpr, at the root) to
// wire them to a destination.
func build(n astNode, terms *[]Term) (entry int, trueExits, falseExits []int) {
	switch v := n.(type) {
	case astTerm:
		*terms = append(*terms, Term{
			Attribute: v.attribute, Comparator: v.comparator, Operand: v.operand,
			Absolute: v.absolute,
		})
		idx := len(*terms) - 1
		return idx, []int{idx}, []int{idx}

	case astAnd:
		lEntry, lTrue, lFalse := build(v.left, terms)
		rEntry, rTrue, rFalse := build(v.right, terms)
		for _, i := range lTrue {
			(*terms)[i].TrueNext = rEntry
		}
		return lEntry, rTrue, append(lFalse, rFalse...)

	case astOr:
		lEntry, lTrue, lFalse := build(v.left, terms)
		rEntry, rTrue, rFalse := build(v.right, terms)
		for _, i := range lFalse {
			(*terms)[i].FalseNext = rEntry
		}
		return lEntry, append(lTrue, rTrue...), rFalse

	case astNot:
		entry, t, f := build(v.operand, terms)
		return entry, f, t

	default:
		return 0, nil, nil
	}
}
