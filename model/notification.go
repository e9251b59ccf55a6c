package model

import "time"

// Notification kinds.
const (
	NotificationKindInfo     = "info"
	NotificationKindAlert    = "alert"
	NotificationKindReminder = "reminder"
)

// Notification audiences. Empty audience means everyone.
const (
	AudienceManagers = "managers"
	AudienceAdmins   = "admins"
)

// Notification is a human-readable record queued for a downstream delivery
// mechanism.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	Audience  string    `json:"audience,omitempty"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}
