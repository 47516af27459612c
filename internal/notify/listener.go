package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mangashelf/mangashelf/internal/events"
)

const sendTimeout = 5 * time.Second

// Settings reports whether the user wants desktop notifications.
type Settings interface {
	DesktopNotifications() bool
}

// Listener turns worker events into notifications.
type Listener struct {
	notifier Notifier
	settings Settings
	logger   *slog.Logger
}

// NewListener creates a listener.
func NewListener(n Notifier, s Settings, logger *slog.Logger) *Listener {
	return &Listener{notifier: n, settings: s, logger: logger}
}

// Types lists the events the listener handles.
func (l *Listener) Types() []events.Type {
	return []events.Type{events.UpdaterEnded, events.DownloadChanged}
}

// Run consumes events until the channel is closed or ctx is done.
func (l *Listener) Run(ctx context.Context, c <-chan events.Event) {
	for {
		select {
		case e, ok := <-c:
			if !ok {
				return
			}
			l.Handle(ctx, e)
		case <-ctx.Done():
			return
		}
	}
}

// Handle sends the notification for e, if any.
func (l *Listener) Handle(ctx context.Context, e events.Event) {
	if l.settings != nil && !l.settings.DesktopNotifications() {
		return
	}
	n, ok := notificationFor(e)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := l.notifier.Notify(ctx, n); err != nil {
		l.logger.Warn("failed to send notification", "event", e.Type, "error", err)
	}
}

func notificationFor(e events.Event) (Notification, bool) {
	switch data := e.Data.(type) {
	case events.UpdaterEndedData:
		n := Notification{Summary: "Library update completed", Tag: "updater"}
		switch data.Recent {
		case 0:
			n.Body = "No new chapters found"
		case 1:
			n.Body = "1 new chapter found"
		default:
			n.Body = fmt.Sprintf("%d new chapters found", data.Recent)
		}
		if data.Errors > 0 {
			n.Body += fmt.Sprintf(", %d works could not be updated", data.Errors)
		}
		return n, true
	case events.DownloadChangedData:
		if data.Err == nil {
			return Notification{}, false
		}
		return Notification{
			Summary: "Download failed",
			Body:    data.Err.Error(),
			Tag:     fmt.Sprintf("download-%d", data.ChapterID),
		}, true
	}
	return Notification{}, false
}
