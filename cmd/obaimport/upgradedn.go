package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/obacore/internal/importer/foreman"
	"github.com/oba-ldap/obacore/internal/importer/job"
	"github.com/oba-ldap/obacore/internal/importer/producer"
	"github.com/oba-ldap/obacore/internal/importer/writer"
	"github.com/oba-ldap/obacore/internal/kv"
)

func newUpgradeDNCmd(configPath, logLevel *string) *cobra.Command {
	var (
		dbPath       string
		conflictPath string
		apply        bool
	)

	cmd := &cobra.Command{
		Use:   "upgradedn",
		Short: "Detect or apply obsolete-DN-format normalisation (spec.md §4.5 upgrade-DN variant)",
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
			entryRDN, err := openDBI(env, foreman.SlotEntryRDN, 0)
			if err != nil {
				return fmt.Errorf("obaimport: opening entryrdn: %w", err)
			}

			inner, err := producer.NewReindexSource(env, id2entry, entryRDN, true, true)
			if err != nil {
				return fmt.Errorf("obaimport: opening reindex source: %w", err)
			}
			defer inner.Close()

			var allowlist []producer.ConflictEntry
			if apply {
				allowlist, err = producer.LoadConflictFile(conflictPath)
				if err != nil {
					return fmt.Errorf("obaimport: loading conflict file %s: %w", conflictPath, err)
				}
			}
			src := producer.NewUpgradeDNSource(inner, !apply, allowlist)

			if !apply {
				// Dry run: drain the source just to populate src.Conflicts,
				// writing nothing (no writer wired for ActionAdd/AddIndex).
				for {
					_, ok, err := src.Next()
					if err != nil {
						return fmt.Errorf("obaimport: scanning for conflicts: %w", err)
					}
					if !ok {
						break
					}
				}
				if err := producer.WriteConflictFile(conflictPath, src.Conflicts); err != nil {
					return fmt.Errorf("obaimport: writing conflict file: %w", err)
				}
				log.Info("upgradedn dry run complete", "status", src.Status, "conflicts", len(src.Conflicts), "conflictFile", conflictPath)
				return nil
			}

			w := writer.New(env, nil, log)
			if err := registerCoreSlots(env, w, true); err != nil {
				return fmt.Errorf("obaimport: opening tables: %w", err)
			}

			cfg := job.Config{
				ProducerCfg: producer.Config{SubtreeRename: true},
				ForemanCfg: foreman.Config{
					SubtreeRename: true,
					UpgradeDNMode: true,
				},
				RingSize:          4096,
				RingStartCapacity: 16 << 20,
				RingMaxCapacity:   512 << 20,
				QueueMinWeight:    1 << 20,
				QueueMaxWeight:    8 << 20,
				FirstID:           1,
				LastID:            ^uint32(0),
			}

			j := job.New(cfg, env, src, w, log)
			if err := j.Run(context.Background()); err != nil {
				return fmt.Errorf("obaimport: upgradedn apply failed: %w", err)
			}
			processed, total, skipped := j.Progress()
			log.Info("upgradedn apply complete", "processed", processed, "total", total, "skipped", skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the LMDB environment directory")
	cmd.Flags().StringVar(&conflictPath, "conflict-file", "", "path to the <instance>_dn_norm_sp.txt conflict file")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply a previously dry-run conflict file instead of generating one")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("conflict-file")
	return cmd
}
