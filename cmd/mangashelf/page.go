package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/codec"
	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/library"
)

func newPageCmd(o *config.Overrides) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "page <chapter-id> <page-number>",
		Short: "Fetch a page as the reader shows it and write it to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chapterID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chapter id %q", args[0])
			}
			number, err := strconv.Atoi(args[1])
			if err != nil || number < 1 {
				return fmt.Errorf("invalid page number %q", args[1])
			}

			return withContainer(o, func(injector *do.RootScope, _ *slog.Logger) error {
				lib := do.MustInvoke[*library.Library](injector)
				ctx := cmd.Context()
				c, err := lib.Chapter(ctx, chapterID)
				if err != nil {
					return err
				}
				if err := lib.UpdateFull(ctx, c); err != nil {
					return err
				}
				data, mediaType, err := lib.ReadPage(ctx, c, number-1)
				if err != nil {
					return err
				}

				path := output
				if path == "" {
					path = fmt.Sprintf("%d-%03d.%s", chapterID, number, codec.Extension(mediaType))
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Sprint("wrote"), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default <chapter-id>-<page>.<ext>)")
	return cmd
}
