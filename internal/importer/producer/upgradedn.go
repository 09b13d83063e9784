package producer

import (
	"fmt"
	"os"
	"strings"

	"github.com/oba-ldap/obacore/internal/ldif"
)

// Upgrade status bits reported after a dry run (spec.md §4.5 "Upgrade-DN
// producer variant": "exits with a status bitmap (DN_NORM, DN_NORM_SP)").
type UpgradeStatus uint8

const (
	StatusDNNorm   UpgradeStatus = 1 << iota // DN needed backslash/quoted-RDN normalisation
	StatusDNNormSP                           // RDN had a multiple-space conflict requiring rename
)

// ConflictEntry records one entry needing rename in apply mode, loaded
// from or written to the dry-run conflict file.
type ConflictEntry struct {
	EID        uint32
	OldRDN     string
	NewRDN     string
	ParentDN   string
}

// UpgradeDNSource wraps a ReindexSource, reparsing each entry's DN in the
// obsolete format and detecting conflicts (spec.md §4.5). In dry-run mode
// it records conflicts instead of renaming; in apply mode it consumes a
// previously written conflict file as a rename table.
type UpgradeDNSource struct {
	inner   *ReindexSource
	dryRun  bool
	allow   map[uint32]ConflictEntry // apply mode: EID -> rename to perform

	Status    UpgradeStatus
	Conflicts []ConflictEntry
}

// NewUpgradeDNSource wraps inner for upgrade-DN processing. If dryRun is
// false, allowlist supplies the renames to apply (normally loaded via
// LoadConflictFile).
func NewUpgradeDNSource(inner *ReindexSource, dryRun bool, allowlist []ConflictEntry) *UpgradeDNSource {
	allow := make(map[uint32]ConflictEntry, len(allowlist))
	for _, c := range allowlist {
		allow[c.EID] = c
	}
	return &UpgradeDNSource{inner: inner, dryRun: dryRun, allow: allow}
}

// Next reparses the next entry's DN for obsolete-format issues (spec.md
// §4.5: backslash/quoted-RDN normalisation, multiple-space conflicts).
func (u *UpgradeDNSource) Next() (*ldif.Record, bool, error) {
	rec, ok, err := u.inner.Next()
	if err != nil || !ok {
		return rec, ok, err
	}

	rdn, rest := splitRDNTop(rec.DN)
	needsNorm := strings.ContainsAny(rdn, "\\\"")
	needsSpaceFix := strings.Contains(rdn, "  ")

	if !needsNorm && !needsSpaceFix {
		return rec, true, nil
	}

	if needsNorm {
		u.Status |= StatusDNNorm
		rdn = normalizeRDN(rdn)
	}

	if needsSpaceFix {
		u.Status |= StatusDNNormSP
		eid := u.inner.LastID()
		if u.dryRun {
			u.Conflicts = append(u.Conflicts, ConflictEntry{
				EID: eid, OldRDN: rdn, NewRDN: fmt.Sprintf("%s %d", collapseSpaces(rdn), eid), ParentDN: rest,
			})
		} else if c, present := u.allow[eid]; present {
			rdn = c.NewRDN
		}
	}

	rec.DN = rdn + rest
	return rec, true, nil
}

func splitRDNTop(dn string) (rdn, rest string) {
	for i := 0; i < len(dn); i++ {
		if dn[i] == ',' && (i == 0 || dn[i-1] != '\\') {
			return dn[:i], dn[i:]
		}
	}
	return dn, ""
}

// normalizeRDN strips backslash escapes and surrounding quotes from an
// RDN's value, per the obsolete-DN-format normalisation spec.md §4.5
// calls for.
func normalizeRDN(rdn string) string {
	rdn = strings.ReplaceAll(rdn, "\\", "")
	rdn = strings.Trim(rdn, `"`)
	return rdn
}

// collapseSpaces reduces runs of spaces to one. Next builds the rename
// target "<rdn> <eid>,<parent>" from the collapsed RDN.
func collapseSpaces(rdn string) string {
	fields := strings.Fields(rdn)
	return strings.Join(fields, " ")
}

// WriteConflictFile persists dry-run conflicts to <instance>_dn_norm_sp.txt
// (spec.md §4.5), one "eid|oldrdn|newrdn|parentdn" line per conflict.
func WriteConflictFile(path string, conflicts []ConflictEntry) error {
	var sb strings.Builder
	for _, c := range conflicts {
		fmt.Fprintf(&sb, "%d|%s|%s|%s\n", c.EID, c.OldRDN, c.NewRDN, c.ParentDN)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// LoadConflictFile reads a conflict file written by WriteConflictFile,
// for apply-mode consumption as a rename allowlist.
func LoadConflictFile(path string) ([]ConflictEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []ConflictEntry
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("upgradedn: malformed conflict line %q", line)
		}
		var eid uint32
		if _, err := fmt.Sscanf(parts[0], "%d", &eid); err != nil {
			return nil, fmt.Errorf("upgradedn: bad eid in %q: %w", line, err)
		}
		out = append(out, ConflictEntry{EID: eid, OldRDN: parts[1], NewRDN: parts[2], ParentDN: parts[3]})
	}
	return out, nil
}
