package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quickdesk/helpdesk/internal/domain"
	"github.com/quickdesk/helpdesk/internal/events"
	"github.com/quickdesk/helpdesk/internal/repository"
	apperrors "github.com/quickdesk/helpdesk/pkg/util"
)

// NotificationService turns lifecycle events into per-recipient notification
// records and serves the read/poll API. Persistence failures here are logged
// and never surface to the ticket operation that triggered them.
type NotificationService struct {
	notifications repository.NotificationRepository
	directory     repository.PrincipalDirectory
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, directory repository.PrincipalDirectory, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		directory:     directory,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
}

// handleTicketCreated fans out to every agent and admin except the creator.
func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	staff, err := n.directory.ListByRole(ctx, domain.RoleAgent, domain.RoleAdmin)
	if err != nil {
		n.logger.Warn("ticket_created fan-out: directory lookup failed", zap.Error(err))
		return nil
	}

	notifications := make([]domain.Notification, 0, len(staff))
	for _, member := range staff {
		if member.ID == payload.CreatedBy {
			continue
		}
		notifications = append(notifications, n.newNotification(
			member.ID, event,
			domain.NotificationTicketCreated,
			"New Ticket Created",
			fmt.Sprintf("New ticket %q has been created", payload.Subject),
		))
	}
	n.persist(ctx, event, notifications)
	return nil
}

// handleStatusChanged notifies the creator, unless the creator made the
// change themselves.
func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok {
		return nil
	}
	if payload.CreatedBy == "" || payload.CreatedBy == event.ActorID {
		return nil
	}
	n.persist(ctx, event, []domain.Notification{n.newNotification(
		payload.CreatedBy, event,
		domain.NotificationStatusChanged,
		"Ticket Status Updated",
		fmt.Sprintf("Ticket status changed from %s to %s", payload.OldStatus, payload.NewStatus),
	)})
	return nil
}

// handleTicketAssigned notifies the new assignee.
func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	if payload.AssignedTo == "" || payload.AssignedTo == event.ActorID {
		return nil
	}
	n.persist(ctx, event, []domain.Notification{n.newNotification(
		payload.AssignedTo, event,
		domain.NotificationTicketAssigned,
		"Ticket Assigned",
		fmt.Sprintf("Ticket %q has been assigned to you", payload.Subject),
	)})
	return nil
}

// handleCommentAdded notifies the other party resolved by the lifecycle.
func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok {
		return nil
	}
	if payload.RecipientID == "" || payload.RecipientID == event.ActorID {
		return nil
	}
	n.persist(ctx, event, []domain.Notification{n.newNotification(
		payload.RecipientID, event,
		domain.NotificationCommentAdded,
		"New Comment Added",
		fmt.Sprintf("New comment added to ticket %q", payload.Subject),
	)})
	return nil
}

func (n *NotificationService) newNotification(recipientID string, event events.Event, typ domain.NotificationType, title, message string) domain.Notification {
	notification := domain.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
	}
	if event.ActorID != "" {
		sender := event.ActorID
		notification.SenderID = &sender
	}
	if event.TicketID != "" {
		ticketID := event.TicketID
		notification.RelatedTicketID = &ticketID
	}
	return notification
}

// persist is fire-and-forget: a failed insert is logged, never propagated.
func (n *NotificationService) persist(ctx context.Context, event events.Event, notifications []domain.Notification) {
	if len(notifications) == 0 {
		return
	}
	if err := n.notifications.InsertMany(ctx, notifications); err != nil {
		n.logger.Warn("notification insert failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Int("recipients", len(notifications)),
			zap.Error(err))
	}
}

// List returns the recipient's page of notifications plus their unread count.
func (n *NotificationService) List(ctx context.Context, principal *domain.Principal, unreadOnly bool, page, limit int) ([]domain.Notification, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	items, err := n.notifications.ListByRecipient(ctx, principal.ID, unreadOnly, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := n.notifications.UnreadCount(ctx, principal.ID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

// MarkRead marks one of the caller's notifications read. Idempotent; the
// first read timestamp is kept on repeats.
func (n *NotificationService) MarkRead(ctx context.Context, principal *domain.Principal, notificationID string) error {
	ok, err := n.notifications.MarkRead(ctx, notificationID, principal.ID, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound("notification", nil)
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller read.
func (n *NotificationService) MarkAllRead(ctx context.Context, principal *domain.Principal) error {
	_, err := n.notifications.MarkAllRead(ctx, principal.ID, time.Now())
	return err
}
