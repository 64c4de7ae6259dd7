package events

import (
	"time"

	"github.com/quickdesk/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventCommentAdded        EventType = "comment_added"
)

// Event represents a domain event emitted by the ticket lifecycle.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload carries what the fan-out needs to notify staff.
type TicketCreatedPayload struct {
	DisplayID string                `json:"display_id"`
	Subject   string                `json:"subject"`
	Priority  domain.TicketPriority `json:"priority"`
	CreatedBy string                `json:"created_by"`
}

// StatusChangedPayload carries the transition for creator notification.
type StatusChangedPayload struct {
	Subject   string              `json:"subject"`
	CreatedBy string              `json:"created_by"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload carries the new assignee.
type TicketAssignedPayload struct {
	Subject    string `json:"subject"`
	AssignedTo string `json:"assigned_to"`
}

// CommentAddedPayload carries the resolved "other party" recipient. Empty
// RecipientID means nobody is to be notified.
type CommentAddedPayload struct {
	Subject     string `json:"subject"`
	CommentID   string `json:"comment_id"`
	RecipientID string `json:"recipient_id,omitempty"`
	IsInternal  bool   `json:"is_internal"`
}
