package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/obacore/internal/importer/foreman"
	"github.com/oba-ldap/obacore/internal/importer/job"
	"github.com/oba-ldap/obacore/internal/importer/producer"
	"github.com/oba-ldap/obacore/internal/importer/worker"
	"github.com/oba-ldap/obacore/internal/importer/writer"
	"github.com/oba-ldap/obacore/internal/kv"
	"github.com/oba-ldap/obacore/internal/ldif"
)

func newImportCmd(configPath, logLevel *string) *cobra.Command {
	var (
		ldifPath      string
		dbPath        string
		subtreeRename bool
		genUniqueID   bool
		tombstoneMode bool
		ringSize      int
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load an LDIF file into a fresh database (spec.md §4.5-§4.9)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*logLevel)

			f, err := os.Open(ldifPath)
			if err != nil {
				return fmt.Errorf("obaimport: opening %s: %w", ldifPath, err)
			}
			defer f.Close()

			env, err := kv.OpenEnv(dbPath, 1<<34, 16)
			if err != nil {
				return fmt.Errorf("obaimport: opening database: %w", err)
			}
			defer env.Close()

			w := writer.New(env, nil, log) // bound to the job's queue by job.New
			if err := registerCoreSlots(env, w, subtreeRename); err != nil {
				return fmt.Errorf("obaimport: opening tables: %w", err)
			}
			if err := registerIndexSlots(env, w, []string{"objectclass", "cn"}); err != nil {
				return fmt.Errorf("obaimport: opening index tables: %w", err)
			}

			src := &Source{scanner: ldif.NewScanner(f, ldifPath)}

			cfg := job.Config{
				ProducerCfg: producer.Config{
					GenerateUniqueID: genUniqueID,
					TombstoneMode:    tombstoneMode,
					SubtreeRename:    subtreeRename,
				},
				ForemanCfg: foreman.Config{
					SubtreeRename: subtreeRename,
					NumIndexers:   2,
				},
				RingSize:          ringSize,
				RingStartCapacity: 16 << 20,
				RingMaxCapacity:   512 << 20,
				QueueMinWeight:    1 << 20,
				QueueMaxWeight:    8 << 20,
				FirstID:           1,
				LastID:            ^uint32(0),
				Indexes: []job.IndexSpec{
					{Attribute: "objectclass", Mask: worker.IndexEquality | worker.IndexPresence, SlotName: "objectclass"},
					{Attribute: "cn", Mask: worker.IndexEquality | worker.IndexSubstring, SlotName: "cn"},
				},
			}

			j := job.New(cfg, env, src, w, log)
			if err := j.Run(context.Background()); err != nil {
				return fmt.Errorf("obaimport: import failed: %w", err)
			}
			processed, total, skipped := j.Progress()
			log.Info("import complete", "processed", processed, "total", total, "skipped", skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&ldifPath, "ldif", "", "path to the LDIF file to import")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the target LMDB environment directory")
	cmd.Flags().BoolVar(&subtreeRename, "subtree-rename", true, "maintain entryrdn instead of legacy entrydn")
	cmd.Flags().BoolVar(&genUniqueID, "generate-uniqueid", true, "generate nsuniqueid when missing")
	cmd.Flags().BoolVar(&tombstoneMode, "tombstones", false, "treat nsTombstone entries specially")
	cmd.Flags().IntVar(&ringSize, "ring-size", 4096, "FIFO ring slot count")
	cmd.MarkFlagRequired("ldif")
	cmd.MarkFlagRequired("db")
	return cmd
}

// Source adapts internal/ldif.Scanner to producer.Source.
type Source struct {
	scanner *ldif.Scanner
}

func (s *Source) Next() (*ldif.Record, bool, error) {
	return s.scanner.Next()
}
