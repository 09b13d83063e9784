package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/obacore/internal/importer/foreman"
	"github.com/oba-ldap/obacore/internal/importer/job"
	"github.com/oba-ldap/obacore/internal/importer/producer"
	"github.com/oba-ldap/obacore/internal/importer/worker"
	"github.com/oba-ldap/obacore/internal/importer/writer"
	"github.com/oba-ldap/obacore/internal/kv"
)

func newReindexCmd(configPath, logLevel *string) *cobra.Command {
	var (
		dbPath        string
		subtreeRename bool
		attrs         []string
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild attribute indexes from id2entry without reparsing LDIF (spec.md §4.5 reindex variant)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*logLevel)

			env, err := kv.OpenEnv(dbPath, 1<<34, 16)
			if err != nil {
				return fmt.Errorf("obaimport: opening database: %w", err)
			}
			defer env.Close()

			id2entry, err := openDBI(env, foreman.SlotID2Entry, 0)
			if err != nil {
				return fmt.Errorf("obaimport: opening id2entry: %w", err)
			}
			var entryRDN kv.DBI
			haveRDN := subtreeRename
			if haveRDN {
				entryRDN, err = openDBI(env, foreman.SlotEntryRDN, 0)
				if err != nil {
					return fmt.Errorf("obaimport: opening entryrdn: %w", err)
				}
			}

			src, err := producer.NewReindexSource(env, id2entry, entryRDN, haveRDN, subtreeRename)
			if err != nil {
				return fmt.Errorf("obaimport: opening reindex source: %w", err)
			}
			defer src.Close()

			w := writer.New(env, nil, log)
			if err := registerCoreSlots(env, w, subtreeRename); err != nil {
				return fmt.Errorf("obaimport: opening tables: %w", err)
			}
			if err := registerIndexSlots(env, w, attrs); err != nil {
				return fmt.Errorf("obaimport: opening index tables: %w", err)
			}

			indexes := make([]job.IndexSpec, 0, len(attrs))
			for _, a := range attrs {
				indexes = append(indexes, job.IndexSpec{
					Attribute: a,
					Mask:      worker.IndexEquality | worker.IndexPresence | worker.IndexSubstring,
					SlotName:  a,
				})
			}

			cfg := job.Config{
				ProducerCfg: producer.Config{SubtreeRename: subtreeRename},
				ForemanCfg: foreman.Config{
					SubtreeRename: subtreeRename,
					NumIndexers:   int32(len(indexes)),
				},
				RingSize:          4096,
				RingStartCapacity: 16 << 20,
				RingMaxCapacity:   512 << 20,
				QueueMinWeight:    1 << 20,
				QueueMaxWeight:    8 << 20,
				FirstID:           1,
				LastID:            ^uint32(0),
				Indexes:           indexes,
			}

			j := job.New(cfg, env, src, w, log)
			if err := j.Run(context.Background()); err != nil {
				return fmt.Errorf("obaimport: reindex failed: %w", err)
			}
			processed, total, skipped := j.Progress()
			log.Info("reindex complete", "processed", processed, "total", total, "skipped", skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the LMDB environment directory")
	cmd.Flags().BoolVar(&subtreeRename, "subtree-rename", true, "reconstruct DNs via entryrdn instead of stored entrydn")
	cmd.Flags().StringSliceVar(&attrs, "attr", nil, "attributes to reindex (repeatable)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("attr")
	return cmd
}
