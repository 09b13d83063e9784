package acl

import "github.com/oba-ldap/obacore/internal/plist"

// GenericRightMap maps a requested right to additional "generic rights"
// whose clauses should also be scanned (spec.md §4.11: "optionally a
// generic-rights mapping").
type GenericRightMap map[Right][]Right

// RightResult is one requested right's evaluated outcome (spec.md
// §4.11's per-right decision plus cachability).
type RightResult struct {
	Right       Right
	Decision    Decision
	Cachability Cachability
	DenyType    string
	DenyMessage string
}

// Evaluator answers check_rights requests against a compiled ACL list,
// named after spec.md §6's external interface
// (evaluator_new/set_subject/set_resource/set_acl_list/check_rights).
type Evaluator struct {
	list     *CompiledList
	subject  *plist.Plist
	resource *plist.Plist
	groups   GroupResolver
	generic  GenericRightMap
}

// NewEvaluator is evaluator_new: constructs an Evaluator with no ACL
// list or subject/resource bound yet.
func NewEvaluator(groups GroupResolver) *Evaluator {
	return &Evaluator{groups: groups}
}

// SetSubject is set_subject: binds the requesting subject's attributes.
func (e *Evaluator) SetSubject(subject *plist.Plist) { e.subject = subject }

// SetResource is set_resource: binds the target resource's attributes.
func (e *Evaluator) SetResource(resource *plist.Plist) { e.resource = resource }

// SetACLList is set_acl_list: binds the compiled clause list to
// evaluate requests against.
func (e *Evaluator) SetACLList(list *CompiledList) { e.list = list }

// SetGenericRights installs the optional generic-rights mapping spec.md
// §4.11 allows ("each requested right also scans clauses matching any
// of its mapped generic rights").
func (e *Evaluator) SetGenericRights(m GenericRightMap) { e.generic = m }

// CheckRights is check_rights: evaluates every right in rights against
// the bound ACL list, subject, and resource, applying spec.md §4.11's
// full precedence rules (DENY short-circuit, deferred ALLOW errors,
// ABSOLUTE fixing, generic-rights expansion).
func (e *Evaluator) CheckRights(rights []Right) []RightResult {
	results := make([]RightResult, len(rights))
	for i, r := range rights {
		results[i] = e.checkOne(r)
	}
	return results
}

func (e *Evaluator) checkOne(right Right) RightResult {
	if e.list == nil {
		return RightResult{Right: right, Decision: DecisionDeny, Cachability: NotCachable}
	}

	indices := e.clauseIndicesFor(right)

	var (
		tentative       = DecisionDeny // default-deny until an ALLOW/DENY fires
		cachability     = IndefCachable
		pendingAllowErr *Decision
		fixed           bool
		denyType        string
		denyMessage     string
	)

	for _, idx := range indices {
		if fixed {
			break
		}
		c := e.list.Clauses[idx]

		outcome, cache, absoluteFired := evalClause(c, e.subject, e.resource, e.groups)
		cachability = cachability.Min(cache)
		decision := translate(outcome)

		switch c.Type {
		case ClauseDeny:
			if decision == DecisionAllow { // term tree evaluated true -> DENY fires
				return RightResult{
					Right: right, Decision: DecisionDeny, Cachability: cachability,
					DenyType: e.list.DenyType, DenyMessage: e.list.DenyMessage,
				}
			}
			if decision == DecisionInvalid || decision == DecisionFail {
				// a DENY clause's own evaluation error short-circuits
				// immediately (spec.md §4.11: "A DENY error short-
				// circuits immediately").
				return RightResult{Right: right, Decision: decision, Cachability: cachability}
			}

		case ClauseAllow:
			switch decision {
			case DecisionAllow:
				tentative = DecisionAllow
				if absoluteFired {
					fixed = true
				}
				pendingAllowErr = nil // a later non-absolute ALLOW supersedes any pending error
			case DecisionInvalid, DecisionFail:
				if pendingAllowErr == nil {
					d := decision
					pendingAllowErr = &d
					denyType, denyMessage = e.list.DenyType, e.list.DenyMessage
				}
			}
		}
	}

	if pendingAllowErr != nil && tentative != DecisionAllow {
		return RightResult{Right: right, Decision: *pendingAllowErr, Cachability: cachability, DenyType: denyType, DenyMessage: denyMessage}
	}

	result := RightResult{Right: right, Decision: tentative, Cachability: cachability}
	if tentative == DecisionDeny {
		result.DenyType, result.DenyMessage = e.list.DenyType, e.list.DenyMessage
	}
	return result
}

// clauseIndicesFor returns right's clause indices merged with any
// generic-rights clauses, in ascending sequence order (spec.md §4.11:
// "walks the merged clause indices in ascending sequence").
func (e *Evaluator) clauseIndicesFor(right Right) []int {
	indices := append([]int(nil), e.list.ByRight[right]...)
	for _, generic := range e.generic[right] {
		indices = append(indices, e.list.ByRight[generic]...)
	}
	return mergeSortedUnique(indices)
}

func mergeSortedUnique(xs []int) []int {
	if len(xs) < 2 {
		return xs
	}
	// simple insertion sort: clause counts per right are small in
	// practice, and this keeps the merge deterministic without pulling
	// in sort for a handful of ints.
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
	out := xs[:0]
	var last = -1
	for _, v := range xs {
		if v != last {
			out = append(out, v)
			last = v
		}
	}
	return out
}

// IsCachable reports whether result may be cached by the URI cache
// layer for an HTTP GET (spec.md §4.11's final cachability sentence).
func (r RightResult) IsCachable() bool {
	return r.Right == HTTPGet && r.Decision == DecisionAllow && r.Cachability == IndefCachable
}
