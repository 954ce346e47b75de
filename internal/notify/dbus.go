//go:build linux

package notify

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
)

const (
	busName   = "org.freedesktop.Notifications"
	busPath   = "/org/freedesktop/Notifications"
	busMethod = busName + ".Notify"

	appName     = "Flow"
	appIcon     = "audio-x-generic"
	desktopFile = "flow"
)

type dbusNotifier struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	markup bool
}

// New connects to the session notification server. Without a session bus
// it returns Nop.
func New() (Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return Nop{}, nil //nolint:nilerr // no desktop session
	}
	obj := conn.Object(busName, busPath)

	var caps []string
	if err := obj.Call(busName+".GetCapabilities", 0).Store(&caps); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "notification server capabilities")
	}
	return &dbusNotifier{
		conn:   conn,
		obj:    obj,
		markup: slices.Contains(caps, "body-markup"),
	}, nil
}

func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	var id uint32
	err := n.obj.Call(busMethod, 0, callArgs(notif, n.markup)...).Store(&id)
	if err != nil {
		return 0, errors.Wrap(err, "send notification")
	}
	return id, nil
}

func (n *dbusNotifier) Dismiss(id uint32) error {
	return n.obj.Call(busName+".CloseNotification", 0, id).Err
}

func (n *dbusNotifier) Close() error {
	return n.conn.Close()
}

// callArgs builds the Notify arguments: app name, replaces id, icon,
// summary, body, actions, hints and timeout.
func callArgs(notif Notification, markup bool) []any {
	body := notif.Body
	if markup {
		body = escapeMarkup(body)
	}
	hints := map[string]dbus.Variant{
		"urgency":        dbus.MakeVariant(byte(notif.Urgency)),
		"desktop-entry":  dbus.MakeVariant(desktopFile),
		"category":       dbus.MakeVariant("x-gnome.music"),
		"suppress-sound": dbus.MakeVariant(true),
	}
	if notif.Image != "" {
		hints["image-path"] = dbus.MakeVariant(notif.Image)
	}
	return []any{
		appName,
		notif.Replaces,
		appIcon,
		notif.Summary,
		body,
		[]string{},
		hints,
		expireMillis(notif.Timeout),
	}
}
