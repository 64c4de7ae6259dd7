package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/quickdesk/helpdesk/internal/config"
	"github.com/quickdesk/helpdesk/internal/domain"
	"github.com/quickdesk/helpdesk/internal/events"
	"github.com/quickdesk/helpdesk/internal/repository"
	"github.com/quickdesk/helpdesk/internal/storage"
	apperrors "github.com/quickdesk/helpdesk/pkg/util"
)

// StatsCache is a best-effort cache for dashboard aggregates. Any Get error
// counts as a miss; Set failures are logged and ignored.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TicketService is the lifecycle engine: it owns the status/priority/
// assignment transitions, the permission checks, comments, votes and the
// events that drive notification fan-out.
type TicketService struct {
	tickets    repository.TicketRepository
	categories repository.CategoryDirectory
	store      storage.Store
	dispatcher events.Dispatcher
	statsCache StatsCache
	statsTTL   time.Duration
	uploads    config.UploadConfig
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	CategoryRepo  repository.CategoryDirectory
	Store         storage.Store
	Dispatcher    events.Dispatcher
	StatsCache    StatsCache
	StatsCacheTTL time.Duration
	Uploads       config.UploadConfig
	Logger        *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		categories: deps.CategoryRepo,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		statsCache: deps.StatsCache,
		statsTTL:   deps.StatsCacheTTL,
		uploads:    deps.Uploads,
		logger:     logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	CategoryID  string
	Priority    domain.TicketPriority
	Tags        []string
	Attachments []storage.Upload
}

// TicketListInput describes listing filters. End-user scoping is applied
// server-side on top of whatever the caller requests.
type TicketListInput struct {
	Status     *domain.TicketStatus
	CategoryID *string
	Priority   *domain.TicketPriority
	AssignedTo *string
	CreatedBy  *string
	Search     *string
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

// TicketUpdateInput is an explicit partial update: nil means "not sent".
type TicketUpdateInput struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	AssignedTo *string
}

// VoteResult reports the tallies after a vote.
type VoteResult struct {
	Upvotes   int
	Downvotes int
}

// DashboardStats aggregates counts for the staff dashboard.
type DashboardStats struct {
	Open       int                           `json:"open"`
	InProgress int                           `json:"in_progress"`
	Resolved   int                           `json:"resolved"`
	Closed     int                           `json:"closed"`
	MyTickets  int                           `json:"my_tickets"`
	ByPriority map[domain.TicketPriority]int `json:"by_priority"`
}

// Create validates and persists a new ticket. Attachment blobs are stored
// before the database write; if that write fails the blobs are deleted so no
// orphan survives a failed create.
func (s *TicketService) Create(ctx context.Context, principal *domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" || description == "" {
		return nil, apperrors.NewValidationError("subject and description are required", nil)
	}
	if utf8.RuneCountInString(subject) > domain.SubjectMaxLen {
		return nil, apperrors.NewValidationError("subject cannot exceed 200 characters", nil)
	}
	if utf8.RuneCountInString(description) > domain.DescriptionMaxLen {
		return nil, apperrors.NewValidationError("description cannot exceed 5000 characters", nil)
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidCategory(input.CategoryID)
		}
		return nil, err
	}
	if !category.IsActive {
		return nil, apperrors.NewInvalidCategory(input.CategoryID)
	}

	priority := input.Priority
	if !priority.Valid() {
		priority = domain.TicketPriorityMedium
	}

	policy := storage.Policy{
		MaxFileSizeBytes: s.uploads.MaxFileSizeBytes,
		MaxFiles:         s.uploads.MaxFilesPerTicket,
	}
	if err := policy.Validate(input.Attachments); err != nil {
		return nil, err
	}

	refs, err := s.saveAttachments(ctx, input.Attachments)
	if err != nil {
		return nil, err
	}

	// A nil tag slice would reach the tags column as SQL NULL; the column is
	// NOT NULL with a '{}' default, so tag-less tickets carry an empty slice.
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	ticket := &domain.Ticket{
		Subject:     subject,
		Description: description,
		CategoryID:  input.CategoryID,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   principal.ID,
		Tags:        tags,
		Attachments: refs,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.releaseAttachments(ctx, refs)
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  principal.ID,
		Payload: events.TicketCreatedPayload{
			DisplayID: ticket.DisplayID,
			Subject:   ticket.Subject,
			Priority:  ticket.Priority,
			CreatedBy: ticket.CreatedBy,
		},
	})
	return ticket, nil
}

// Get fetches a ticket with its comments, enforcing read access. Unknown ids
// are not-found; known tickets outside the caller's scope are forbidden.
func (s *TicketService) Get(ctx context.Context, principal *domain.Principal, ticketID string) (*domain.Ticket, []domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !principal.CanReadTicket(ticket) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}

	comments, err := s.tickets.ListComments(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	if principal.Role == domain.RoleUser {
		comments = publicComments(comments)
	}
	return ticket, comments, nil
}

// List returns the page of tickets visible to the principal plus the total
// match count. End-users always see only their own tickets, whatever filters
// they send.
func (s *TicketService) List(ctx context.Context, principal *domain.Principal, input TicketListInput) ([]domain.Ticket, int, error) {
	filter := repository.TicketFilter{
		Status:     input.Status,
		CategoryID: input.CategoryID,
		Priority:   input.Priority,
		AssignedTo: input.AssignedTo,
		CreatedBy:  input.CreatedBy,
		Search:     input.Search,
		SortBy:     input.SortBy,
		SortOrder:  input.SortOrder,
	}

	if principal.Role == domain.RoleUser {
		createdBy := principal.ID
		filter.CreatedBy = &createdBy
		filter.AssignedTo = nil
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	return s.tickets.ListWithFilter(ctx, filter)
}

// Update applies a partial update under role rules: end-users may only move
// the status of their own tickets (priority/assignee fields from them are
// ignored, not rejected); staff may change all three on any ticket. Every
// transition between the four states is legal, including reopening closed
// tickets.
func (s *TicketService) Update(ctx context.Context, principal *domain.Principal, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if principal.Role == domain.RoleUser && ticket.CreatedBy != principal.ID {
		return nil, apperrors.NewForbidden("access denied")
	}

	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", nil)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", nil)
	}

	oldStatus := ticket.Status
	oldAssignee := ticket.AssignedTo

	if input.Status != nil {
		ticket.Status = *input.Status
	}
	if principal.CanManageTicket() {
		if input.Priority != nil {
			ticket.Priority = *input.Priority
		}
		if input.AssignedTo != nil {
			if *input.AssignedTo == "" {
				ticket.AssignedTo = nil
			} else {
				assignee := *input.AssignedTo
				ticket.AssignedTo = &assignee
			}
		}
	}

	// First entry into resolved/closed stamps the timestamp; later re-entries
	// keep the original.
	now := time.Now()
	if ticket.Status == domain.TicketStatusResolved && oldStatus != domain.TicketStatusResolved && ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &now
	}
	if ticket.Status == domain.TicketStatusClosed && oldStatus != domain.TicketStatusClosed && ticket.ClosedAt == nil {
		ticket.ClosedAt = &now
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	if ticket.Status != oldStatus {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			ActorID:  principal.ID,
			Payload: events.StatusChangedPayload{
				Subject:   ticket.Subject,
				CreatedBy: ticket.CreatedBy,
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	if assigneeChanged(oldAssignee, ticket.AssignedTo) && ticket.AssignedTo != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  principal.ID,
			Payload: events.TicketAssignedPayload{
				Subject:    ticket.Subject,
				AssignedTo: *ticket.AssignedTo,
			},
		})
	}
	return ticket, nil
}

// AddComment appends a comment under the same read-access rule as Get.
// isInternal from an end-user is forced to false. The notification goes to
// the "other party": the assignee when the creator comments, the creator
// otherwise.
func (s *TicketService) AddComment(ctx context.Context, principal *domain.Principal, ticketID, content string, isInternal bool, attachments []storage.Upload) (*domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !principal.CanReadTicket(ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment content is required", nil)
	}
	if principal.Role == domain.RoleUser {
		isInternal = false
	}

	policy := storage.Policy{
		MaxFileSizeBytes: s.uploads.MaxFileSizeBytes,
		MaxFiles:         s.uploads.MaxFilesPerReply,
	}
	if err := policy.Validate(attachments); err != nil {
		return nil, err
	}

	refs, err := s.saveAttachments(ctx, attachments)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:    ticket.ID,
		AuthorID:    principal.ID,
		Content:     content,
		IsInternal:  isInternal,
		Attachments: refs,
	}
	if err := s.tickets.AddComment(ctx, comment); err != nil {
		s.releaseAttachments(ctx, refs)
		return nil, err
	}

	recipient := ticket.CreatedBy
	if principal.ID == ticket.CreatedBy {
		recipient = ""
		if ticket.AssignedTo != nil {
			recipient = *ticket.AssignedTo
		}
	}
	if recipient != "" && recipient != principal.ID {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventCommentAdded,
			TicketID: ticket.ID,
			ActorID:  principal.ID,
			Payload: events.CommentAddedPayload{
				Subject:     ticket.Subject,
				CommentID:   comment.ID,
				RecipientID: recipient,
				IsInternal:  comment.IsInternal,
			},
		})
	}
	return comment, nil
}

// Vote puts the principal in exactly one of the two vote sets. Re-voting the
// same direction is a no-op, voting the other direction moves the principal
// across sets.
func (s *TicketService) Vote(ctx context.Context, principal *domain.Principal, ticketID string, direction domain.VoteDirection) (*VoteResult, error) {
	if !direction.Valid() {
		return nil, apperrors.NewValidationError("vote type must be upvote or downvote", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	upvotes, downvotes, err := s.tickets.SetVote(ctx, ticket.ID, principal.ID, direction)
	if err != nil {
		return nil, err
	}
	return &VoteResult{Upvotes: upvotes, Downvotes: downvotes}, nil
}

// Stats returns dashboard aggregates for staff, served from the cache when a
// fresh enough copy exists. Cache trouble is logged and absorbed.
func (s *TicketService) Stats(ctx context.Context, principal *domain.Principal) (*DashboardStats, error) {
	if !principal.Role.IsStaff() {
		return nil, apperrors.NewForbidden("agent or admin role required")
	}

	cacheKey := "stats:dashboard:" + principal.ID
	if s.statsCache != nil {
		if raw, err := s.statsCache.Get(ctx, cacheKey); err == nil {
			var cached DashboardStats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	byStatus, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	mine, err := s.tickets.CountAssignedTo(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	byPriority, err := s.tickets.CountByPriority(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		Open:       byStatus[domain.TicketStatusOpen],
		InProgress: byStatus[domain.TicketStatusInProgress],
		Resolved:   byStatus[domain.TicketStatusResolved],
		Closed:     byStatus[domain.TicketStatusClosed],
		MyTickets:  mine,
		ByPriority: byPriority,
	}

	if s.statsCache != nil && s.statsTTL > 0 {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.statsCache.Set(ctx, cacheKey, raw, s.statsTTL); err != nil {
				s.logger.Debug("stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) saveAttachments(ctx context.Context, uploads []storage.Upload) ([]domain.AttachmentRef, error) {
	refs := make([]domain.AttachmentRef, 0, len(uploads))
	for _, up := range uploads {
		ref, err := s.store.Save(ctx, up)
		if err != nil {
			s.releaseAttachments(ctx, refs)
			return nil, apperrors.NewInternalError(err)
		}
		refs = append(refs, *ref)
	}
	return refs, nil
}

// releaseAttachments is the compensation path: blobs already written for a
// failed request must not be left behind.
func (s *TicketService) releaseAttachments(ctx context.Context, refs []domain.AttachmentRef) {
	for _, ref := range refs {
		if err := s.store.Delete(ctx, ref.StorageKey); err != nil {
			s.logger.Warn("orphaned attachment cleanup failed",
				zap.String("storage_key", ref.StorageKey), zap.Error(err))
		}
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func publicComments(comments []domain.Comment) []domain.Comment {
	filtered := make([]domain.Comment, 0, len(comments))
	for _, comment := range comments {
		if comment.IsInternal {
			continue
		}
		filtered = append(filtered, comment)
	}
	return filtered
}

func assigneeChanged(old, new *string) bool {
	switch {
	case old == nil && new == nil:
		return false
	case old == nil || new == nil:
		return true
	default:
		return *old != *new
	}
}
