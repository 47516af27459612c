package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/importer"
)

func newImportCmd(o *config.Overrides) *cobra.Command {
	var update bool

	cmd := &cobra.Command{
		Use:   "import <backup-file>",
		Short: "Add the works listed in a library backup from another reader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backup, err := importer.ParseFile(args[0])
			if err != nil {
				return err
			}
			return withContainer(o, func(injector *do.RootScope, _ *slog.Logger) error {
				im := do.MustInvoke[*importer.Importer](injector)
				res, err := im.Import(cmd.Context(), backup)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %d works in %s\n", okStyle.Sprint("imported"), len(res.WorkIDs), res.Duration.Round(time.Millisecond))
				if res.Unmapped > 0 {
					fmt.Fprintf(out, "%s %d entries from unsupported sources\n", warnStyle.Sprint("skipped"), res.Unmapped)
				}
				if res.Failed > 0 {
					fmt.Fprintf(out, "%s %d entries\n", errStyle.Sprint("failed"), res.Failed)
				}

				if !update || len(res.WorkIDs) == 0 {
					return nil
				}
				return runUpdate(cmd.Context(), injector, out, res.WorkIDs)
			})
		},
	}
	cmd.Flags().BoolVar(&update, "update", false, "fetch chapters for the imported works right away")
	return cmd
}
