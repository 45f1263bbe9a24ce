// Package notify sends desktop notifications over the session bus.
package notify

import (
	"fmt"

	"github.com/bnema/waycomp/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	// expireTimeout is in milliseconds.
	expireTimeout int32 = 5000
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(summary, body string) error
}

// DBus delivers notifications through org.freedesktop.Notifications.
type DBus struct {
	conn *dbus.Conn
	app  string
}

// NewDBus connects to the session bus.
func NewDBus(app string) (*DBus, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &DBus{conn: conn, app: app}, nil
}

func notifyArgs(app, summary, body string) []interface{} {
	return []interface{}{
		app,
		uint32(0), // replaces_id
		"",        // app_icon
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		expireTimeout,
	}
}

func (d *DBus) Notify(summary, body string) error {
	obj := d.conn.Object(notificationsService, notificationsPath)
	call := obj.Call(notificationsInterface+".Notify", 0, notifyArgs(d.app, summary, body)...)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(string, string) error { return nil }

// Default returns a session bus notifier, or Discard when there is no
// session bus.
func Default(app string) Notifier {
	n, err := NewDBus(app)
	if err != nil {
		logger.Debugf("Desktop notifications disabled: %v", err)
		return Discard{}
	}
	return n
}
