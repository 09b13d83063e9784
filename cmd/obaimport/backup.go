package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/obacore/internal/backup"
	"github.com/oba-ldap/obacore/internal/importer/foreman"
	"github.com/oba-ldap/obacore/internal/kv"
)

func newBackupCmd(logLevel *string) *cobra.Command {
	var (
		dbPath  string
		destDir string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump dse_instance.ldif and dse_index.ldif (spec.md §6 \"Backup/restore metadata\")",
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

			instancePath := filepath.Join(destDir, "dse_instance.ldif.gz")
			n, err := backup.Dump(env, id2entry, instancePath, "nsBackendInstance")
			if err != nil {
				return fmt.Errorf("obaimport: dumping %s: %w", instancePath, err)
			}
			log.Info("wrote backend instance dump", "path", instancePath, "entries", n)

			indexPath := filepath.Join(destDir, "dse_index.ldif.gz")
			n, err = backup.Dump(env, id2entry, indexPath, "nsIndex")
			if err != nil {
				return fmt.Errorf("obaimport: dumping %s: %w", indexPath, err)
			}
			log.Info("wrote index dump", "path", indexPath, "entries", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the source LMDB environment directory")
	cmd.Flags().StringVar(&destDir, "dest", ".", "directory to write dse_instance.ldif.gz/dse_index.ldif.gz into")
	cmd.MarkFlagRequired("db")
	return cmd
}
