package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/di/providers"
	"github.com/mangashelf/mangashelf/internal/events"
)

func newUpdateCmd(o *config.Overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "update [work-id...]",
		Short: "Refresh works from their providers, the whole library by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid work id %q", a)
				}
				ids = append(ids, id)
			}
			return withContainer(o, func(injector *do.RootScope, _ *slog.Logger) error {
				return runUpdate(cmd.Context(), injector, cmd.OutOrStdout(), ids)
			})
		},
	}
}

// runUpdate refreshes ids, or the whole library when ids is empty, and
// waits for the updater and any downloads it queued.
func runUpdate(ctx context.Context, injector *do.RootScope, out io.Writer, ids []int64) error {
	bus := do.MustInvoke[*providers.EventBusHandle](injector)
	upd := do.MustInvoke[*providers.UpdaterHandle](injector)
	dl := do.MustInvoke[*providers.DownloaderHandle](injector)

	sub, err := bus.Subscribe(events.WorkUpdated, events.UpdaterEnded, events.DownloaderEnded)
	if err != nil {
		return err
	}
	defer bus.Unsubscribe(sub.ID)

	if len(ids) == 0 {
		if err := upd.UpdateLibrary(ctx); err != nil {
			return err
		}
	} else {
		upd.Add(ids...)
		upd.Start(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			switch data := e.Data.(type) {
			case events.WorkUpdatedData:
				printWorkUpdated(out, data)
			case events.DownloaderEndedData:
				fmt.Fprintf(out, "%d chapters downloaded, %d failed\n", data.Completed, data.Failed)
			case events.UpdaterEndedData:
				fmt.Fprintf(out, "%d updated, %d new chapters, %d errors\n", data.Updated, data.Recent, data.Errors)
				// No downloads are queued once the updater has returned.
				if err := upd.Wait(ctx); err != nil {
					return err
				}
				return dl.Wait(ctx)
			}
		}
	}
}

func printWorkUpdated(out io.Writer, data events.WorkUpdatedData) {
	name := "?"
	if data.Work != nil {
		name = data.Work.Name
	}
	switch {
	case data.Err != nil:
		fmt.Fprintf(out, "%s %s: %v\n", errStyle.Sprint("failed"), name, data.Err)
	case data.Recent > 0:
		fmt.Fprintf(out, "%s %s: %d new\n", okStyle.Sprint("updated"), nameStyle.Sprint(name), data.Recent)
	default:
		fmt.Fprintf(out, "%s %s\n", mutedStyle.Sprint("unchanged"), name)
	}
	if data.Deleted > 0 {
		fmt.Fprintf(out, "  %s %d chapters removed upstream\n", warnStyle.Sprint("note"), data.Deleted)
	}
}
