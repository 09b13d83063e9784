// Package acl compiles declarative access-control clauses into a
// rights-indexed decision structure and evaluates check_rights requests
// against it (spec.md §4.11).
//
// Grounded on the teacher's own internal/acl package (Right bit flags,
// declarative-comment style, NewX constructors), generalized from
// first-match-wins DN-pattern rules to the compiled clause-sequence /
// boolean-expression-array model with deferred-ALLOW-error and ABSOLUTE
// short-circuit semantics spec.md §4.11 specifies.
package acl

import "github.com/oba-ldap/obacore/internal/plist"

// Right represents an LDAP (or generic HTTP-style) access control right.
// Rights are bit flags so a clause can grant/deny several at once.
type Right uint32

const (
	Read Right = 1 << iota
	Write
	Add
	Delete
	Search
	Compare
	HTTPGet

	All = Read | Write | Add | Delete | Search | Compare | HTTPGet
)

var rightNames = map[Right]string{
	Read: "read", Write: "write", Add: "add", Delete: "delete",
	Search: "search", Compare: "compare", HTTPGet: "http_get",
}

// String returns the right's canonical lowercase name, or "unknown" for
// an unrecognised bit.
func (r Right) String() string {
	if name, ok := rightNames[r]; ok {
		return name
	}
	return "unknown"
}

// Has reports whether r includes other.
func (r Right) Has(other Right) bool {
	return r&other != 0
}

// ClauseType distinguishes the four ACL clause kinds spec.md §4.11
// compiles differently (ALLOW/DENY, AUTH, RESPONSE).
type ClauseType int

const (
	ClauseAllow ClauseType = iota
	ClauseDeny
	ClauseAuth
	ClauseResponse
)

// Cachability is the cachability flag a term evaluator returns (spec.md
// §4.11 "Cachability").
type Cachability int

const (
	IndefCachable Cachability = iota
	SessionCachable
	NotCachable
)

// Min returns the more conservative of a, b (NotCachable dominates
// SessionCachable dominates IndefCachable).
func (a Cachability) Min(b Cachability) Cachability {
	if a > b {
		return a
	}
	return b
}

// Outcome is a term or clause evaluation result (spec.md §4.11's
// EVAL_TRUE/EVAL_FALSE/EVAL_INVALID/EVAL_DECLINE/EVAL_NEED_MORE_INFO).
type Outcome int

const (
	EvalTrue Outcome = iota
	EvalFalse
	EvalInvalid
	EvalDecline
	EvalNeedMoreInfo
)

// Decision is the final per-right result after translation (spec.md
// §4.11 "Result translation").
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionDeny
	DecisionInvalid
	DecisionFail
)

func translate(o Outcome) Decision {
	switch o {
	case EvalTrue:
		return DecisionAllow
	case EvalFalse:
		return DecisionDeny
	case EvalInvalid:
		return DecisionInvalid
	case EvalDecline:
		return DecisionFail
	case EvalNeedMoreInfo:
		return DecisionDeny
	default:
		return DecisionDeny
	}
}

// Comparator is a term's relational operator (spec.md §4.11's term
// evaluators: "any comparator" for timeofday, "eq/ne" for the rest).
type Comparator int

const (
	CmpEQ Comparator = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

// Subject/Resource plist slots, reusing the Core A Plist type (spec.md
// §4.11's subject/resource plists passed into evaluate()).
const (
	SlotUserDN   = plist.SlotUser
	SlotResource = plist.SlotDN
)
