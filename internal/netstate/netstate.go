// Package netstate reports whether the machine has network connectivity,
// as seen by NetworkManager on the system bus.
package netstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	nmBusName    = "org.freedesktop.NetworkManager"
	nmObjectPath = dbus.ObjectPath("/org/freedesktop/NetworkManager")
)

// Connectivity mirrors NMConnectivityState.
type Connectivity uint32

// NetworkManager connectivity states.
const (
	Unknown Connectivity = iota
	None
	Portal
	Limited
	Full
)

// Checker reads the current connectivity state.
type Checker interface {
	Connectivity(ctx context.Context) (Connectivity, error)
}

// Monitor answers Online for the downloader. Without a checker, or when the
// checker fails, the machine is assumed online.
type Monitor struct {
	checker Checker
	logger *slog.Logger

	mu     sync.Mutex
	warned bool
}

// New returns a monitor backed by checker, which may be nil.
func New(checker Checker, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{checker: checker, logger: logger}
}

// Online reports false only when NetworkManager positively says there is
// no connectivity.
func (m *Monitor) Online(ctx context.Context) bool {
	if m.checker == nil {
		return true
	}
	state, err := m.checker.Connectivity(ctx)
	if err != nil {
		m.mu.Lock()
		if !m.warned {
			m.logger.Warn("connectivity check unavailable, assuming online", "error", err)
			m.warned = true
		}
		m.mu.Unlock()
		return true
	}
	return state != None
}

// SystemBus reads the Connectivity property over D-Bus.
type SystemBus struct {
	conn *dbus.Conn
}

// Connect opens a private connection to the system bus.
func Connect() (*SystemBus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &SystemBus{conn: conn}, nil
}

// Connectivity implements Checker.
func (b *SystemBus) Connectivity(ctx context.Context) (Connectivity, error) {
	var v dbus.Variant
	err := b.conn.Object(nmBusName, nmObjectPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, nmBusName, "Connectivity").
		Store(&v)
	if err != nil {
		return Unknown, err
	}
	state, ok := v.Value().(uint32)
	if !ok {
		return Unknown, nil
	}
	return Connectivity(state), nil
}

// Close closes the bus connection.
func (b *SystemBus) Close() error {
	return b.conn.Close()
}

// Open returns a monitor on the system bus, or one that always reports
// online when the bus is unreachable.
func Open(logger *slog.Logger) (*Monitor, func() error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bus, err := Connect()
	if err != nil {
		logger.Info("system bus unavailable, connectivity checks disabled", "error", err)
		return New(nil, logger), func() error { return nil }
	}
	return New(bus, logger), bus.Close
}
