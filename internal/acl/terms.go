package acl

import (
	"net"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oba-ldap/obacore/internal/plist"
)

// GroupResolver answers the "user-ismember" attribute getter spec.md
// §4.11's group term needs ("resolves via attribute-getter registered
// for user-ismember"). A caller supplies a concrete implementation
// (typically backed by the directory's group entries).
type GroupResolver interface {
	IsMember(userDN, groupDN string) (bool, error)
}

// evalIP implements spec.md §4.11's ip term: IPv4/IPv6 literal or CIDR
// operands, eq/ne comparator. Parses the operand fresh each call; a real
// deployment with many repeated clauses would build the bit-trie the
// spec mentions, but per-request CIDR parsing is already O(operands) and
// cachability still reflects IndefCachable since the subnet never changes.
func evalIP(t *Term, subject, _ *plist.Plist, _ GroupResolver) (Outcome, Cachability) {
	raw, ok := subject.GetSlot(plist.SlotIP)
	if !ok {
		return EvalNeedMoreInfo, NotCachable
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return EvalInvalid, NotCachable
	}

	matched := false
	for _, operand := range strings.Split(t.Operand, ",") {
		operand = strings.TrimSpace(operand)
		if operand == "" {
			continue
		}
		if strings.Contains(operand, "/") {
			_, network, err := net.ParseCIDR(operand)
			if err == nil && network.Contains(ip) {
				matched = true
				break
			}
			continue
		}
		if net.ParseIP(operand).Equal(ip) {
			matched = true
			break
		}
	}

	if t.Comparator == CmpNE {
		matched = !matched
	}
	return boolOutcome(matched), IndefCachable
}

// evalDNS implements spec.md §4.11's dns/dnsalias term: dotted-label
// match with leading-"." wildcard ("*.example.com" style), eq/ne.
func evalDNS(t *Term, subject, _ *plist.Plist, _ GroupResolver) (Outcome, Cachability) {
	host, ok := subject.GetSlot(plist.SlotDNS)
	if !ok {
		return EvalNeedMoreInfo, NotCachable
	}
	host = strings.ToLower(host)

	matched := false
	for _, operand := range strings.Split(t.Operand, ",") {
		operand = strings.ToLower(strings.TrimSpace(operand))
		if strings.HasPrefix(operand, ".") {
			if strings.HasSuffix(host, operand) || host == strings.TrimPrefix(operand, ".") {
				matched = true
				break
			}
			continue
		}
		if host == operand {
			matched = true
			break
		}
	}

	if t.Comparator == CmpNE {
		matched = !matched
	}
	return boolOutcome(matched), IndefCachable
}

// evalTimeOfDay implements spec.md §4.11's timeofday term: "HHMM" or
// "HHMM-HHMM" operand, any comparator, range wraps midnight.
func evalTimeOfDay(t *Term, subject, _ *plist.Plist, _ GroupResolver) (Outcome, Cachability) {
	raw, ok := subject.GetSlot(plist.SlotTimeOfDay)
	if !ok {
		return EvalNeedMoreInfo, NotCachable
	}
	now, err := parseHHMM(raw)
	if err != nil {
		return EvalInvalid, NotCachable
	}

	if lo, hi, isRange := strings.Cut(t.Operand, "-"); isRange {
		loMin, err1 := parseHHMM(lo)
		hiMin, err2 := parseHHMM(hi)
		if err1 != nil || err2 != nil {
			return EvalInvalid, SessionCachable
		}
		inRange := inWrappingRange(now, loMin, hiMin)
		if t.Comparator == CmpNE {
			inRange = !inRange
		}
		return boolOutcome(inRange), SessionCachable
	}

	target, err := parseHHMM(t.Operand)
	if err != nil {
		return EvalInvalid, SessionCachable
	}
	return boolOutcome(compareInt(now, target, t.Comparator)), SessionCachable
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, strconv.ErrSyntax
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(s[2:])
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

func inWrappingRange(now, lo, hi int) bool {
	if lo <= hi {
		return now >= lo && now <= hi
	}
	return now >= lo || now <= hi // wraps midnight
}

func compareInt(a, b int, cmp Comparator) bool {
	switch cmp {
	case CmpEQ:
		return a == b
	case CmpNE:
		return a != b
	case CmpLT:
		return a < b
	case CmpLE:
		return a <= b
	case CmpGT:
		return a > b
	case CmpGE:
		return a >= b
	default:
		return false
	}
}

var dayIndex = map[string]int{"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6}

// evalDayOfWeek implements spec.md §4.11's dayofweek term: comma-less
// list of 3-letter day names, eq/ne.
func evalDayOfWeek(t *Term, subject, _ *plist.Plist, _ GroupResolver) (Outcome, Cachability) {
	raw, ok := subject.GetSlot(plist.SlotDayOfWeek)
	if !ok {
		return EvalNeedMoreInfo, NotCachable
	}
	today, ok := dayIndex[strings.ToLower(raw)]
	if !ok {
		return EvalInvalid, SessionCachable
	}

	matched := false
	for _, name := range strings.Fields(t.Operand) {
		if d, ok := dayIndex[strings.ToLower(name)]; ok && d == today {
			matched = true
			break
		}
	}
	if t.Comparator == CmpNE {
		matched = !matched
	}
	return boolOutcome(matched), SessionCachable
}

// evalUser implements spec.md §4.11's user term: literal DN,
// comma-separated list, or the special tokens anyone/all/owner.
func evalUser(t *Term, subject, resource *plist.Plist, _ GroupResolver) (Outcome, Cachability) {
	userDN, haveUser := subject.GetSlot(plist.SlotUser)

	matched := false
	for _, operand := range strings.Split(t.Operand, ",") {
		operand = strings.TrimSpace(strings.ToLower(operand))
		switch operand {
		case "anyone", "all":
			matched = true
		case "owner":
			if resourceDN, ok := resource.GetSlot(plist.SlotDN); ok && haveUser && strings.EqualFold(resourceDN, userDN) {
				matched = true
			}
		default:
			if haveUser && strings.EqualFold(userDN, operand) {
				matched = true
			}
		}
		if matched {
			break
		}
	}
	if t.Comparator == CmpNE {
		matched = !matched
	}
	cache := IndefCachable
	if strings.Contains(strings.ToLower(t.Operand), "owner") {
		cache = SessionCachable // per-subject, not cacheable across subjects
	}
	return boolOutcome(matched), cache
}

// groupCacheEntry is the value of evalGroup's bounded LRU membership cache
// (4096 entries, keyed by user DN, database and group DN). Entries have
// no expiry; they leave the cache only through LRU eviction.
type groupCacheEntry struct {
	isMember bool
}

var groupCache, _ = lru.New[string, groupCacheEntry](4096)

// evalGroup implements spec.md §4.11's group term: resolves membership
// via the GroupResolver ("user-ismember" attribute getter), cached in a
// bounded LRU keyed by (user DN, database, group DN).
func evalGroup(t *Term, subject, resource *plist.Plist, groups GroupResolver) (Outcome, Cachability) {
	if groups == nil {
		return EvalDecline, NotCachable
	}
	userDN, ok := subject.GetSlot(plist.SlotUser)
	if !ok {
		return EvalNeedMoreInfo, NotCachable
	}
	database, _ := subject.GetSlot(plist.SlotDatabase)

	for _, groupDN := range strings.Split(t.Operand, ",") {
		groupDN = strings.TrimSpace(groupDN)
		cacheKey := userDN + "\x00" + database + "\x00" + groupDN
		if entry, ok := groupCache.Get(cacheKey); ok {
			if entry.isMember == (t.Comparator != CmpNE) {
				return EvalTrue, SessionCachable
			}
			continue
		}
		member, err := groups.IsMember(userDN, groupDN)
		if err != nil {
			return EvalDecline, NotCachable
		}
		groupCache.Add(cacheKey, groupCacheEntry{isMember: member})
		if member == (t.Comparator != CmpNE) {
			return EvalTrue, SessionCachable
		}
	}
	return EvalFalse, SessionCachable
}

func boolOutcome(b bool) Outcome {
	if b {
		return EvalTrue
	}
	return EvalFalse
}
