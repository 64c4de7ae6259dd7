package domain

import "time"

// NotificationType enumerates the lifecycle events surfaced to recipients.
type NotificationType string

const (
	NotificationTicketCreated  NotificationType = "ticket_created"
	NotificationTicketUpdated  NotificationType = "ticket_updated"
	NotificationTicketAssigned NotificationType = "ticket_assigned"
	NotificationCommentAdded   NotificationType = "comment_added"
	NotificationStatusChanged  NotificationType = "status_changed"
)

// Notification is a per-recipient record consumed by the poll API.
type Notification struct {
	ID              string
	RecipientID     string
	SenderID        *string
	Type            NotificationType
	Title           string
	Message         string
	RelatedTicketID *string
	IsRead          bool
	ReadAt          *time.Time
	CreatedAt       time.Time
}
