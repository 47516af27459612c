// Package notify sends desktop notifications.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/mangashelf/mangashelf/internal/errors"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyCall = busName + ".Notify"

	// expireDefault lets the notification server pick the timeout.
	expireDefault int32 = -1
)

// Notification is one desktop notification.
type Notification struct {
	Summary string
	Body    string
	Icon    string
	// Tag groups notifications; a new one replaces the previous one with
	// the same tag.
	Tag string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }

// DBus sends notifications through the freedesktop notification service
// on the session bus.
type DBus struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	appName string

	mu       sync.Mutex
	replaces map[string]uint32
}

// NewDBus connects to the session bus.
func NewDBus(appName string) (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnsupported, "connect session bus")
	}
	return &DBus{
		conn:     conn,
		obj:      conn.Object(busName, objectPath),
		appName:  appName,
		replaces: make(map[string]uint32),
	}, nil
}

// Open returns a D-Bus notifier, or Nop when no session bus is reachable.
func Open(appName string, logger *slog.Logger) Notifier {
	n, err := NewDBus(appName)
	if err != nil {
		logger.Info("desktop notifications unavailable", "error", err)
		return Nop{}
	}
	return n
}

// Notify implements Notifier.
func (d *DBus) Notify(ctx context.Context, n Notification) error {
	d.mu.Lock()
	replaces := d.replaces[n.Tag]
	d.mu.Unlock()

	var id uint32
	err := d.obj.CallWithContext(ctx, notifyCall, 0,
		d.appName, replaces, n.Icon, n.Summary, n.Body,
		[]string{}, map[string]dbus.Variant{}, expireDefault,
	).Store(&id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "send notification")
	}

	if n.Tag != "" {
		d.mu.Lock()
		d.replaces[n.Tag] = id
		d.mu.Unlock()
	}
	return nil
}

// Close releases the bus connection.
func (d *DBus) Close() error {
	return d.conn.Close()
}
