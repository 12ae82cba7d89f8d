package domain

import "time"

// NotificationType is the delivery channel of a notification record.
type NotificationType string

const (
	NotificationEmail   NotificationType = "email"
	NotificationBrowser NotificationType = "browser"
)

// EventKind is the todo lifecycle event a notification was raised for.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventUpdated   EventKind = "updated"
	EventCompleted EventKind = "completed"
	EventDeleted   EventKind = "deleted"
	EventDueSoon   EventKind = "due_soon"
)

// Valid reports whether k is a known lifecycle event.
func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventCompleted, EventDeleted, EventDueSoon:
		return true
	}
	return false
}

// MaxMessageLength bounds Notification.Message.
const MaxMessageLength = 500

// Notification records an event-driven message for a user. SentAt is set
// exactly when Sent is true. TodoID is nil for events about a todo that no
// longer exists.
type Notification struct {
	ID        uint             `gorm:"primaryKey"`
	TodoID    *uint            `gorm:"index:idx_notifications_dedup,priority:1"`
	UserID    uint             `gorm:"not null;index:idx_notifications_dedup,priority:2;index:idx_notifications_inbox,priority:1"`
	User      *User            `gorm:"constraint:OnDelete:CASCADE"`
	Message   string           `gorm:"size:500;not null"`
	Type      NotificationType `gorm:"size:20;not null;index:idx_notifications_dedup,priority:3;index:idx_notifications_inbox,priority:2"`
	Event     EventKind        `gorm:"size:20;not null;default:'';index:idx_notifications_dedup,priority:4"`
	Sent      bool             `gorm:"not null;default:false;index:idx_notifications_inbox,priority:3"`
	SentAt    *time.Time
	CreatedAt time.Time `gorm:"not null;index:idx_notifications_inbox,priority:4"`
}

// MarkSent flips the record to sent at the given instant.
func (n *Notification) MarkSent(at time.Time) {
	n.Sent = true
	n.SentAt = &at
}
