// Package notify shows desktop notifications for playback events.
package notify

import (
	"strings"
	"time"
)

// Urgency is the freedesktop urgency level.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notification is one desktop notification.
type Notification struct {
	Summary string
	Body    string
	// Image is a local file shown alongside the text, usually cover art.
	Image string
	// Timeout of zero leaves expiry to the notification server.
	Timeout time.Duration
	// Replaces updates an earlier notification in place when non-zero.
	Replaces uint32
	Urgency  Urgency
}

// Notifier delivers notifications.
type Notifier interface {
	// Notify shows n and returns its server id. A notifier with no server
	// returns 0 and no error.
	Notify(n Notification) (uint32, error)
	// Dismiss removes a shown notification.
	Dismiss(id uint32) error
	// Close releases the connection to the server.
	Close() error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(Notification) (uint32, error) { return 0, nil }
func (Nop) Dismiss(uint32) error                { return nil }
func (Nop) Close() error                        { return nil }

// expireMillis converts a timeout to the wire value, -1 meaning the
// server default.
func expireMillis(d time.Duration) int32 {
	if d <= 0 {
		return -1
	}
	return int32(min(d.Milliseconds(), int64(1<<31-1)))
}

var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeMarkup protects body text on servers that render markup.
func escapeMarkup(s string) string {
	return markupEscaper.Replace(s)
}
