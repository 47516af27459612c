package main

import (
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/di/providers"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
)

func newBackupCmd(o *config.Overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Check the database and write a backup next to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(o, func(injector *do.RootScope, _ *slog.Logger) error {
				store := do.MustInvoke[*providers.StoreHandle](injector)
				if err := store.Backup(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Sprint("backed up"), store.Path()+sqlite.BackupSuffix)
				return nil
			})
		},
	}
}
