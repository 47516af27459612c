package main

import (
	"log/slog"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/di"
)

func newRootCmd() *cobra.Command {
	var overrides config.Overrides

	root := &cobra.Command{
		Use:           "mangashelf",
		Short:         "Keep a local manga library in sync with online providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&overrides.EnvFile, "env-file", "", "path to a .env file (default .env)")
	flags.StringVar(&overrides.Environment, "env", "", "environment: development, staging or production")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&overrides.DataDir, "data-dir", "", "directory holding the database and downloaded content")
	flags.StringVar(&overrides.ConfigDir, "config-dir", "", "directory holding settings, credentials and cookies")
	flags.StringVar(&overrides.ConnectTimeout, "connect-timeout", "", "HTTP connect timeout, e.g. 10s")
	flags.StringVar(&overrides.ReadTimeout, "read-timeout", "", "HTTP read timeout, e.g. 30s")
	flags.StringVar(&overrides.MaxAttempts, "max-attempts", "", "HTTP attempts per request")
	flags.StringVar(&overrides.PerHost, "per-host", "", "concurrent HTTP requests per host")
	flags.StringVar(&overrides.DownloadDelay, "download-delay", "", "pause between page downloads, e.g. 1s")
	flags.StringVar(&overrides.Watch, "watch", "", "watch the content store for external deletions (true/false)")

	root.AddCommand(
		newDaemonCmd(&overrides),
		newImportCmd(&overrides),
		newProvidersCmd(&overrides),
		newUpdateCmd(&overrides),
		newBackupCmd(&overrides),
		newSearchCmd(&overrides),
		newPageCmd(&overrides),
	)
	return root
}

// withContainer bootstraps the container, runs fn and shuts everything down.
func withContainer(o *config.Overrides, fn func(injector *do.RootScope, log *slog.Logger) error) error {
	injector := di.NewContainer(*o)
	if err := di.Bootstrap(injector); err != nil {
		return err
	}
	log := do.MustInvoke[*slog.Logger](injector)

	runErr := fn(injector, log)

	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	return runErr
}
