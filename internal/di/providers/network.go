package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/fetcher"
	"github.com/mangashelf/mangashelf/internal/netstate"
	"github.com/mangashelf/mangashelf/internal/provider"
	// Registers every bundled provider.
	_ "github.com/mangashelf/mangashelf/internal/provider/all"
)

// SessionsHandle wraps the HTTP session registry with shutdown capability.
type SessionsHandle struct {
	*fetcher.Registry
	logger *slog.Logger
}

// Shutdown implements do.Shutdownable. Requests still in flight are
// cancelled and cookie jars are persisted.
func (h *SessionsHandle) Shutdown() error {
	h.CancelInFlight()
	if err := h.SaveCookies(); err != nil {
		h.logger.Warn("Failed to save cookies", "error", err)
	}
	return h.Close()
}

// ProvideSessions provides the shared HTTP fetcher.
func ProvideSessions(i do.Injector) (*SessionsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	opts := fetcher.DefaultOptions()
	opts.ConnectTimeout = cfg.HTTP.ConnectTimeout
	opts.ReadTimeout = cfg.HTTP.ReadTimeout
	opts.MaxAttempts = cfg.HTTP.MaxAttempts
	opts.PerHost = cfg.HTTP.PerHost
	opts.CookiesDir = cfg.CookiesPath()

	registry := fetcher.NewRegistry(opts, log.With("component", "fetcher"))
	return &SessionsHandle{Registry: registry, logger: log}, nil
}

// ProvideProviders provides the provider registry.
func ProvideProviders(i do.Injector) (*provider.Registry, error) {
	sessions := do.MustInvoke[*SessionsHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	registry := provider.NewRegistry(provider.Deps{
		Sessions: sessions.Registry,
		Logger:   log.With("component", "provider"),
	})

	log.Info("Providers registered", "count", len(registry.List()))

	return registry, nil
}

// NetStateHandle wraps the connectivity monitor with shutdown capability.
type NetStateHandle struct {
	*netstate.Monitor
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *NetStateHandle) Shutdown() error {
	return h.close()
}

// ProvideNetState provides the connectivity monitor gating the downloader.
func ProvideNetState(i do.Injector) (*NetStateHandle, error) {
	log := do.MustInvoke[*slog.Logger](i)

	monitor, closeFn := netstate.Open(log.With("component", "netstate"))
	return &NetStateHandle{Monitor: monitor, close: closeFn}, nil
}
