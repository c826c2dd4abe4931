package app

import (
	"fmt"
	"slices"
	"time"
)

// NotificationType selects the toast color and prefix.
type NotificationType int

// Notification kinds. NotificationLoading renders with the spinner.
const (
	NotificationSuccess NotificationType = iota
	NotificationError
	NotificationWarning
	NotificationInfo
	NotificationLoading
)

var notificationNames = [...]string{"success", "error", "warning", "info", "loading"}

func (n NotificationType) String() string {
	if n < 0 || int(n) >= len(notificationNames) {
		return "unknown"
	}
	return notificationNames[n]
}

// LoadingNotificationID is the ID of the one loading toast.
const LoadingNotificationID = "__loading__"

// maxNotifications bounds the toast stack.
const maxNotifications = 10

// Notification is one toast.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

// IsExpired reports whether the toast outlived its duration. Toasts without
// a duration never expire.
func (n *Notification) IsExpired() bool {
	return n.expiredAt(time.Now())
}

func (n *Notification) expiredAt(now time.Time) bool {
	return n.Duration > 0 && now.Sub(n.CreatedAt) > n.Duration
}

// toasts is the toast stack, oldest first. Callers hold the State lock.
type toasts struct {
	items []Notification
	seq   int
}

func (t *toasts) add(kind NotificationType, message string, duration time.Duration, now time.Time) string {
	t.seq++
	id := fmt.Sprintf("%s-%d", now.Format("150405"), t.seq)
	t.items = append(t.items, Notification{
		ID:        id,
		Type:      kind,
		Message:   message,
		CreatedAt: now,
		Duration:  duration,
	})
	if over := len(t.items) - maxNotifications; over > 0 {
		t.items = slices.Delete(t.items, 0, over)
	}
	return id
}

func (t *toasts) remove(id string) {
	t.items = slices.DeleteFunc(t.items, func(n Notification) bool { return n.ID == id })
}

func (t *toasts) setLoading(message string, now time.Time) {
	if i := slices.IndexFunc(t.items, func(n Notification) bool { return n.ID == LoadingNotificationID }); i >= 0 {
		t.items[i].Message = message
		return
	}
	t.items = append(t.items, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: now,
	})
}

// live returns a copy holding the toasts that have not expired at now.
func (t toasts) live(now time.Time) toasts {
	out := toasts{seq: t.seq, items: make([]Notification, 0, len(t.items))}
	for _, n := range t.items {
		if !n.expiredAt(now) {
			out.items = append(out.items, n)
		}
	}
	return out
}
