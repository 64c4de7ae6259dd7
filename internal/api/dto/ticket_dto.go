package dto

import (
	"time"

	"github.com/quickdesk/helpdesk/internal/domain"
)

// UpdateTicketRequest is an explicit partial update: absent fields stay nil.
type UpdateTicketRequest struct {
	Status     *domain.TicketStatus   `json:"status"`
	Priority   *domain.TicketPriority `json:"priority"`
	AssignedTo *string                `json:"assignedTo"`
}

// VoteRequest payload.
type VoteRequest struct {
	Type domain.VoteDirection `json:"type"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	ContentType  string `json:"contentType"`
	SizeBytes    int64  `json:"sizeBytes"`
	StorageKey   string `json:"storageKey"`
}

// CommentResponse represents a ticket reply.
type CommentResponse struct {
	ID          string               `json:"id"`
	AuthorID    string               `json:"author"`
	Content     string               `json:"content"`
	IsInternal  bool                 `json:"isInternal"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// TicketSummary is the listing shape.
type TicketSummary struct {
	ID           string                `json:"id"`
	DisplayID    string                `json:"ticketId"`
	Subject      string                `json:"subject"`
	CategoryID   string                `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	CreatedBy    string                `json:"createdBy"`
	AssignedTo   *string               `json:"assignedTo"`
	Tags         []string              `json:"tags"`
	Upvotes      int                   `json:"upvotes"`
	Downvotes    int                   `json:"downvotes"`
	LastActivity time.Time             `json:"lastActivity"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string               `json:"description"`
	Attachments []AttachmentResponse `json:"attachments"`
	Comments    []CommentResponse    `json:"comments"`
	ResolvedAt  *time.Time           `json:"resolvedAt"`
	ClosedAt    *time.Time           `json:"closedAt"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Tickets     []TicketSummary `json:"tickets"`
	Total       int             `json:"total"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
}

// VoteResponse reports the tallies after a vote.
type VoteResponse struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// StatsResponse mirrors the staff dashboard aggregate.
type StatsResponse struct {
	Open       int                           `json:"open"`
	InProgress int                           `json:"inProgress"`
	Resolved   int                           `json:"resolved"`
	Closed     int                           `json:"closed"`
	MyTickets  int                           `json:"myTickets"`
	ByPriority map[domain.TicketPriority]int `json:"byPriority"`
}
