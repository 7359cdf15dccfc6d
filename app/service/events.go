package service

import "context"

// Notification event types published to the notification topic.
const (
	EventLogin         = "login"
	EventFirebaseLogin = "firebase_login"
	EventRegistration  = "registration"
)

// Notification is a user-facing or admin-facing message event consumed by
// the notification service.
type Notification struct {
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Type       string            `json:"type"`
	UserID     uint64            `json:"user_id,omitempty"`
	TargetRole string            `json:"target_role"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NotificationPublisher hands events to the broker. Publishing is
// best-effort: a broker outage must never fail the login or registration
// that triggered the event.
type NotificationPublisher interface {
	Publish(ctx context.Context, event *Notification) error
}
