package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is one of the known states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is one of the known levels.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// VoteDirection is the side a principal casts a vote on.
type VoteDirection string

const (
	VoteUpvote   VoteDirection = "upvote"
	VoteDownvote VoteDirection = "downvote"
)

// Valid reports whether the direction is upvote or downvote.
func (d VoteDirection) Valid() bool {
	return d == VoteUpvote || d == VoteDownvote
}

// Length caps enforced on ticket text fields.
const (
	SubjectMaxLen     = 200
	DescriptionMaxLen = 5000
)

// AttachmentRef is stored metadata pointing at a blob in the attachment store.
type AttachmentRef struct {
	ID           string
	TicketID     string
	CommentID    *string
	StorageKey   string
	OriginalName string
	ContentType  string
	SizeBytes    int64
	CreatedAt    time.Time
}

// Comment is a reply on a ticket. Internal comments are hidden from end-users.
type Comment struct {
	ID          string
	TicketID    string
	AuthorID    string
	Content     string
	IsInternal  bool
	Attachments []AttachmentRef
	CreatedAt   time.Time
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           string
	DisplayID    string
	Subject      string
	Description  string
	CategoryID   string
	Priority     TicketPriority
	Status       TicketStatus
	CreatedBy    string
	AssignedTo   *string
	Tags         []string
	Attachments  []AttachmentRef
	Upvoters     []string
	Downvoters   []string
	ResolvedAt   *time.Time
	ClosedAt     *time.Time
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
