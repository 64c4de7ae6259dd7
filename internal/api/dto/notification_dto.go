package dto

import (
	"time"

	"github.com/quickdesk/helpdesk/internal/domain"
)

// NotificationResponse is a single poll-API record.
type NotificationResponse struct {
	ID              string                  `json:"id"`
	SenderID        *string                 `json:"sender"`
	Type            domain.NotificationType `json:"type"`
	Title           string                  `json:"title"`
	Message         string                  `json:"message"`
	RelatedTicketID *string                 `json:"relatedTicket"`
	IsRead          bool                    `json:"isRead"`
	ReadAt          *time.Time              `json:"readAt"`
	CreatedAt       time.Time               `json:"createdAt"`
}

// NotificationListResponse wraps a page plus the unread tally.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unreadCount"`
}
