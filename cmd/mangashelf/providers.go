package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/di/providers"
	"github.com/mangashelf/mangashelf/internal/normalize"
	"github.com/mangashelf/mangashelf/internal/provider"
)

func newProvidersCmd(o *config.Overrides) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the bundled providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(o, func(injector *do.RootScope, _ *slog.Logger) error {
				registry := do.MustInvoke[*provider.Registry](injector)
				prefs := do.MustInvoke[*providers.SettingsHandle](injector)

				infos := registry.List()
				if !all {
					infos = registry.Allowed(prefs.Settings)
				}
				sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

				rows := make([][]string, 0, len(infos))
				for _, info := range infos {
					lang := mutedStyle.Sprint("multi")
					if info.Lang != "" {
						lang = info.Lang
						if name := normalize.Language(info.Lang); name != "" {
							lang = fmt.Sprintf("%s %s", name, mutedStyle.Sprintf("(%s)", info.Lang))
						}
					}
					rows = append(rows, []string{
						nameStyle.Sprint(info.ID),
						info.Name,
						lang,
						yesNo(info.HasLogin),
						yesNo(info.IsNSFW),
						yesNo(info.Sync),
					})
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Language", "Login", "NSFW", "Sync"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include providers filtered out by the language, NSFW and enabled settings")
	return cmd
}
