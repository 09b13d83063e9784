// Package plist implements the property-list scoped value map used to carry
// subject, resource, and authentication attributes through the ACL
// evaluator and the bulk-import pipeline.
//
// A Plist looks up its hot, well-known attributes (dn, ip, dns, method,
// database, ...) through a fixed-size array indexed by Slot for O(1)
// access, and falls back to a string-keyed map for everything else. This
// mirrors the teacher's pattern of normalizing well-known attribute access
// (see internal/backend/entry.go's lower-cased map lookups) while adding
// the indexed hot path spec.md's Design Notes call for.
package plist

// Slot identifies one of the fixed, frequently accessed attributes.
type Slot int

const (
	SlotDN Slot = iota
	SlotIP
	SlotDNS
	SlotMethod
	SlotDatabase
	SlotUser
	SlotTimeOfDay
	SlotDayOfWeek
	numSlots
)

var slotNames = map[string]Slot{
	"dn":         SlotDN,
	"ip":         SlotIP,
	"dns":        SlotDNS,
	"method":     SlotMethod,
	"database":   SlotDatabase,
	"user":       SlotUser,
	"timeofday":  SlotTimeOfDay,
	"dayofweek":  SlotDayOfWeek,
}

// Plist is an ordered name->value property list. Zero value is ready to use.
type Plist struct {
	fixed    [numSlots]string
	fixedSet [numSlots]bool
	names    []string
	extra    map[string]string
}

// New returns an empty Plist.
func New() *Plist {
	return &Plist{}
}

// Set stores a value under name, using the fast indexed path for
// well-known attribute names.
func (p *Plist) Set(name, value string) {
	if slot, ok := slotNames[name]; ok {
		if !p.fixedSet[slot] {
			p.names = append(p.names, name)
		}
		p.fixed[slot] = value
		p.fixedSet[slot] = true
		return
	}
	if p.extra == nil {
		p.extra = make(map[string]string)
	}
	if _, ok := p.extra[name]; !ok {
		p.names = append(p.names, name)
	}
	p.extra[name] = value
}

// Get returns the value for name and whether it was present.
func (p *Plist) Get(name string) (string, bool) {
	if slot, ok := slotNames[name]; ok {
		return p.fixed[slot], p.fixedSet[slot]
	}
	v, ok := p.extra[name]
	return v, ok
}

// GetSlot is the O(1) hot-path accessor for well-known attributes.
func (p *Plist) GetSlot(slot Slot) (string, bool) {
	return p.fixed[slot], p.fixedSet[slot]
}

// SetSlot is the O(1) hot-path mutator for well-known attributes.
func (p *Plist) SetSlot(slot Slot, value string) {
	if !p.fixedSet[slot] {
		for name, s := range slotNames {
			if s == slot {
				p.names = append(p.names, name)
				break
			}
		}
	}
	p.fixed[slot] = value
	p.fixedSet[slot] = true
}

// Names returns the insertion order of keys set on this plist.
func (p *Plist) Names() []string {
	return p.names
}

// Dup returns a deep copy scoped independently of the receiver, per
// spec.md's plist duplication requirement for per-clause AUTH snapshots.
func (p *Plist) Dup() *Plist {
	if p == nil {
		return nil
	}
	cp := &Plist{
		fixed:    p.fixed,
		fixedSet: p.fixedSet,
		names:    append([]string(nil), p.names...),
	}
	if p.extra != nil {
		cp.extra = make(map[string]string, len(p.extra))
		for k, v := range p.extra {
			cp.extra[k] = v
		}
	}
	return cp
}
