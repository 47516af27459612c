package main

import (
	"log/slog"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/library"
)

func newSearchCmd(o *config.Overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "search <provider> [term...]",
		Short: "Search a provider; without a term, list its most popular works",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(o, func(injector *do.RootScope, _ *slog.Logger) error {
				lib := do.MustInvoke[*library.Library](injector)
				results, err := lib.SearchProvider(cmd.Context(), args[0], strings.Join(args[1:], " "), nil)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{nameStyle.Sprint(r.Slug), r.Name})
				}
				return printTable(cmd.OutOrStdout(), []string{"Slug", "Name"}, rows)
			})
		},
	}
}
