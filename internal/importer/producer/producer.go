// Package producer implements the LDIF/replication entry source described
// in spec.md §4.5: parses input records, runs schema/syntax checks,
// injects operational attributes, and pushes decoded entries onto the
// FIFO ring in assigned-ID order.
package producer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/oba-ldap/obacore/internal/importer/entry"
	"github.com/oba-ldap/obacore/internal/importer/fifo"
	"github.com/oba-ldap/obacore/internal/importer/pause"
	"github.com/oba-ldap/obacore/internal/ldif"
	"github.com/oba-ldap/obacore/internal/logging"
	"github.com/oba-ldap/obacore/internal/schema"
)

// Source yields raw LDIF-shaped records; either a file/stdin scanner
// (internal/ldif.Scanner) or a replication session (internal/replication).
type Source interface {
	Next() (*ldif.Record, bool, error)
}

// Config controls producer behavior (spec.md §4.5, §6).
type Config struct {
	IncludeSubtrees  []string
	ExcludeSubtrees  []string
	GenerateUniqueID bool
	TombstoneMode    bool
	InjectTimestamps bool
	InjectUSN        bool
	SubtreeRename    bool
}

// Producer reads Source in declared order, decodes, validates, and
// enqueues entries (spec.md §4.5 steps 1-6).
type Producer struct {
	cfg     Config
	source  Source
	checker schema.Checker
	ring    *fifo.Ring
	log     logging.Logger

	nextID  uint32
	Skipped int

	// Gate pauses the producer between records (spec.md §4.9); nil means
	// the producer never pauses. Set by job.New before Run is called.
	Gate *pause.Gate
}

// New builds a Producer starting IDs at firstID (spec.md §3).
func New(cfg Config, src Source, checker schema.Checker, ring *fifo.Ring, log logging.Logger, firstID uint32) *Producer {
	if log == nil {
		log = logging.Nop()
	}
	if checker == nil {
		checker = schema.Permissive()
	}
	return &Producer{cfg: cfg, source: src, checker: checker, ring: ring, log: log, nextID: firstID}
}

// Run drains the source until exhaustion or ctx cancellation, enqueuing
// one Entry per accepted record. EIDs are strictly increasing and
// contiguous starting at firstID (spec.md P1).
func (p *Producer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.Gate.Wait(ctx); err != nil {
			return err
		}
		rec, ok, err := p.source.Next()
		if err != nil {
			return fmt.Errorf("producer: %w", err)
		}
		if !ok {
			return nil
		}

		if p.excluded(rec.DN) {
			continue
		}

		e := p.decode(rec)

		if err := p.checker.CheckEntry(rec.DN, rec.Attrs); err != nil {
			p.log.Warn("producer: schema violation, skipping entry", "dn", rec.DN, "error", err)
			p.Skipped++
			continue
		}

		p.injectOperational(e)

		if err := p.ring.Push(ctx, e); err != nil {
			if _, ok := err.(*fifo.ErrTooLarge); ok {
				p.log.Warn("producer: entry too large for ring, skipping", "dn", rec.DN)
				p.Skipped++
				continue
			}
			return err
		}
		p.nextID++
	}
}

func (p *Producer) excluded(dn string) bool {
	for _, ex := range p.cfg.ExcludeSubtrees {
		if isUnder(dn, ex) {
			return true
		}
	}
	if len(p.cfg.IncludeSubtrees) == 0 {
		return false
	}
	for _, in := range p.cfg.IncludeSubtrees {
		if isUnder(dn, in) {
			return false
		}
	}
	return true
}

func isUnder(dn, base string) bool {
	if dn == base {
		return true
	}
	if len(dn) <= len(base) {
		return false
	}
	return dn[len(dn)-len(base):] == base && dn[len(dn)-len(base)-1] == ','
}

func (p *Producer) decode(rec *ldif.Record) *entry.Entry {
	e := &entry.Entry{
		ID:         p.nextID,
		DN:         rec.DN,
		SourceFile: rec.SourceFile,
		SourceLine: rec.SourceLine,
	}
	for name, values := range rec.Attrs {
		e.SetAttr(name, values...)
	}
	if p.cfg.TombstoneMode && hasObjectClass(rec.Attrs, "nstombstone") {
		e.Flags |= entry.FlagTombstone
	}
	return e
}

func hasObjectClass(attrs map[string][]string, oc string) bool {
	for _, v := range attrs["objectclass"] {
		if v == oc {
			return true
		}
	}
	return false
}

// injectOperational performs spec.md §4.5 step 5: unique-id generation,
// tombstone CSN injection, timestamps, entry-USN — whatever is configured.
func (p *Producer) injectOperational(e *entry.Entry) {
	if p.cfg.GenerateUniqueID && len(e.GetAttr("nsuniqueid")) == 0 {
		e.SetAttr("nsuniqueid", uuid.NewString())
	}
	if e.HasFlag(entry.FlagTombstone) && len(e.GetAttr("nstombstonecsn")) == 0 {
		e.SetAttr("nstombstonecsn", "00000000000000000000")
	}
}
