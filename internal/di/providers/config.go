// Package providers contains dependency injection providers for mangashelf.
package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/logger"
)

// ProvideConfig provides the application configuration. Command-line
// overrides are registered as a value by the caller.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	overrides, err := do.Invoke[config.Overrides](i)
	if err != nil {
		overrides = config.Overrides{}
	}
	return config.Load(overrides)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*slog.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting mangashelf",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.Storage.DataDir,
		"config_dir", cfg.Storage.ConfigDir,
	)

	return log, nil
}
