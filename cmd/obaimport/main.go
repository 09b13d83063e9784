// Command obaimport drives bulk-import, reindex, upgrade-DN, and ACL
// compilation checks against an oba directory backend (spec.md §1).
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oba-ldap/obacore/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	root := &cobra.Command{
		Use:           "obaimport",
		Short:         "Bulk-import, reindex, and ACL tooling for an oba directory backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to server config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "error|warn|info|debug|trace")

	root.AddCommand(
		newImportCmd(&configPath, &logLevel),
		newReindexCmd(&configPath, &logLevel),
		newUpgradeDNCmd(&configPath, &logLevel),
		newACLCheckCmd(&logLevel),
		newBackupCmd(&logLevel),
	)
	return root
}

func newLogger(levelName string) logging.Logger {
	lvl, err := zerolog.ParseLevel(levelName)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return logging.New(os.Stderr)
}
