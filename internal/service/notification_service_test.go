package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickdesk/helpdesk/internal/config"
	"github.com/quickdesk/helpdesk/internal/domain"
	"github.com/quickdesk/helpdesk/internal/events"
)

type fakeNotificationRepo struct {
	seq        int
	records    []domain.Notification
	failInsert bool
}

func (r *fakeNotificationRepo) InsertMany(ctx context.Context, notifications []domain.Notification) error {
	if r.failInsert {
		return errors.New("insert failed")
	}
	for _, n := range notifications {
		r.seq++
		n.ID = fmt.Sprintf("notif-%d", r.seq)
		n.CreatedAt = time.Now()
		r.records = append(r.records, n)
	}
	return nil
}

func (r *fakeNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	var result []domain.Notification
	for _, n := range r.records {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		result = append(result, n)
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeNotificationRepo) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count := 0
	for _, n := range r.records {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) (bool, error) {
	for i := range r.records {
		if r.records[i].ID == id && r.records[i].RecipientID == recipientID {
			if r.records[i].ReadAt == nil {
				r.records[i].ReadAt = &readAt
			}
			r.records[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int64, error) {
	var updated int64
	for i := range r.records {
		if r.records[i].RecipientID == recipientID && !r.records[i].IsRead {
			r.records[i].IsRead = true
			r.records[i].ReadAt = &readAt
			updated++
		}
	}
	return updated, nil
}

func (r *fakeNotificationRepo) forRecipient(recipientID string) []domain.Notification {
	var result []domain.Notification
	for _, n := range r.records {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	return result
}

type fakeDirectory struct {
	principals []domain.Principal
	failList   bool
}

func (d *fakeDirectory) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	for i := range d.principals {
		if d.principals[i].ID == id {
			return &d.principals[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (d *fakeDirectory) ListByRole(ctx context.Context, roles ...domain.Role) ([]domain.Principal, error) {
	if d.failList {
		return nil, errors.New("directory unavailable")
	}
	var result []domain.Principal
	for _, p := range d.principals {
		for _, role := range roles {
			if p.Role == role {
				result = append(result, p)
				break
			}
		}
	}
	return result, nil
}

type notifEnv struct {
	tickets       *TicketService
	notifications *NotificationService
	repo          *fakeNotificationRepo
	directory     *fakeDirectory
}

// newNotifEnv wires the lifecycle and notification services through a live
// dispatcher so events flow end to end.
func newNotifEnv(t *testing.T) *notifEnv {
	t.Helper()
	ticketRepo := newFakeTicketRepo()
	notifRepo := &fakeNotificationRepo{}
	directory := &fakeDirectory{principals: []domain.Principal{
		{ID: "a1", Name: "Agent One", Role: domain.RoleAgent},
		{ID: "a2", Name: "Agent Two", Role: domain.RoleAgent},
		{ID: "adm", Name: "Admin", Role: domain.RoleAdmin},
		{ID: "u1", Name: "End User", Role: domain.RoleUser},
	}}

	dispatcher := events.NewInMemoryDispatcher(nil)
	notifications := NewNotificationService(notifRepo, directory, dispatcher, nil)
	notifications.RegisterHandlers()

	tickets := NewTicketService(TicketDependencies{
		TicketRepo: ticketRepo,
		CategoryRepo: &fakeCategoryDir{categories: map[string]*domain.Category{
			"cat-it": {ID: "cat-it", Name: "IT", IsActive: true},
		}},
		Store:      newFakeStore(),
		Dispatcher: dispatcher,
		Uploads: config.UploadConfig{
			MaxFileSizeBytes:  10 * 1024 * 1024,
			MaxFilesPerTicket: 5,
			MaxFilesPerReply:  3,
		},
	})
	return &notifEnv{tickets: tickets, notifications: notifications, repo: notifRepo, directory: directory}
}

func TestTicketCreatedFanOut(t *testing.T) {
	env := newNotifEnv(t)
	ctx := context.Background()

	_, err := env.tickets.Create(ctx, endUser("u1"), TicketCreateInput{
		Subject:     "VPN down",
		Description: "Cannot connect since this morning.",
		CategoryID:  "cat-it",
	})
	require.NoError(t, err)

	require.Len(t, env.repo.records, 3, "every agent and admin gets one record")
	recipients := map[string]bool{}
	for _, n := range env.repo.records {
		recipients[n.RecipientID] = true
		assert.Equal(t, domain.NotificationTicketCreated, n.Type)
		assert.Equal(t, "New Ticket Created", n.Title)
		assert.Contains(t, n.Message, "VPN down")
		require.NotNil(t, n.SenderID)
		assert.Equal(t, "u1", *n.SenderID)
		require.NotNil(t, n.RelatedTicketID)
	}
	assert.Equal(t, map[string]bool{"a1": true, "a2": true, "adm": true}, recipients)
}

func TestTicketCreatedByAgentExcludesCreator(t *testing.T) {
	env := newNotifEnv(t)

	_, err := env.tickets.Create(context.Background(), agent("a1"), TicketCreateInput{
		Subject:     "Raised on behalf of a caller",
		Description: "Phone intake.",
		CategoryID:  "cat-it",
	})
	require.NoError(t, err)

	require.Len(t, env.repo.records, 2)
	for _, n := range env.repo.records {
		assert.NotEqual(t, "a1", n.RecipientID, "the acting agent must not notify themselves")
	}
}

func TestStatusChangeNotification(t *testing.T) {
	env := newNotifEnv(t)
	ctx := context.Background()

	ticket, err := env.tickets.Create(ctx, endUser("u1"), TicketCreateInput{
		Subject: "VPN down", Description: "details", CategoryID: "cat-it",
	})
	require.NoError(t, err)
	env.repo.records = nil

	resolved := domain.TicketStatusResolved
	_, err = env.tickets.Update(ctx, agent("a1"), ticket.ID, TicketUpdateInput{Status: &resolved})
	require.NoError(t, err)

	creatorInbox := env.repo.forRecipient("u1")
	require.Len(t, creatorInbox, 1)
	assert.Equal(t, domain.NotificationStatusChanged, creatorInbox[0].Type)
	assert.Contains(t, creatorInbox[0].Message, "open")
	assert.Contains(t, creatorInbox[0].Message, "resolved")

	// The creator closing their own ticket generates nothing.
	env.repo.records = nil
	closed := domain.TicketStatusClosed
	_, err = env.tickets.Update(ctx, endUser("u1"), ticket.ID, TicketUpdateInput{Status: &closed})
	require.NoError(t, err)
	assert.Empty(t, env.repo.records)
}

func TestAssignmentNotification(t *testing.T) {
	env := newNotifEnv(t)
	ctx := context.Background()

	ticket, err := env.tickets.Create(ctx, endUser("u1"), TicketCreateInput{
		Subject: "VPN down", Description: "details", CategoryID: "cat-it",
	})
	require.NoError(t, err)
	env.repo.records = nil

	assignee := "a2"
	_, err = env.tickets.Update(ctx, agent("a1"), ticket.ID, TicketUpdateInput{AssignedTo: &assignee})
	require.NoError(t, err)

	inbox := env.repo.forRecipient("a2")
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationTicketAssigned, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "assigned to you")

	// Self-assignment is silent.
	env.repo.records = nil
	self := "a1"
	_, err = env.tickets.Update(ctx, agent("a1"), ticket.ID, TicketUpdateInput{AssignedTo: &self})
	require.NoError(t, err)
	assert.Empty(t, env.repo.forRecipient("a1"))
}

func TestCommentNotification(t *testing.T) {
	env := newNotifEnv(t)
	ctx := context.Background()

	ticket, err := env.tickets.Create(ctx, endUser("u1"), TicketCreateInput{
		Subject: "VPN down", Description: "details", CategoryID: "cat-it",
	})
	require.NoError(t, err)
	env.repo.records = nil

	_, err = env.tickets.AddComment(ctx, agent("a1"), ticket.ID, "restart the client", false, nil)
	require.NoError(t, err)

	inbox := env.repo.forRecipient("u1")
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationCommentAdded, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "VPN down")
}

func TestFanOutFailuresDoNotBreakTicketOperations(t *testing.T) {
	env := newNotifEnv(t)
	ctx := context.Background()

	t.Run("insert failure absorbed", func(t *testing.T) {
		env.repo.failInsert = true
		_, err := env.tickets.Create(ctx, endUser("u1"), TicketCreateInput{
			Subject: "still works", Description: "details", CategoryID: "cat-it",
		})
		assert.NoError(t, err)
		env.repo.failInsert = false
	})

	t.Run("directory failure absorbed", func(t *testing.T) {
		env.directory.failList = true
		_, err := env.tickets.Create(ctx, endUser("u1"), TicketCreateInput{
			Subject: "still works too", Description: "details", CategoryID: "cat-it",
		})
		assert.NoError(t, err)
		env.directory.failList = false
	})
}

func TestNotificationReadAPI(t *testing.T) {
	env := newNotifEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.tickets.Create(ctx, endUser("u1"), TicketCreateInput{
			Subject: fmt.Sprintf("ticket %d", i), Description: "details", CategoryID: "cat-it",
		})
		require.NoError(t, err)
	}
	a1 := agent("a1")

	items, unread, err := env.notifications.List(ctx, a1, false, 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 3, unread)

	require.NoError(t, env.notifications.MarkRead(ctx, a1, items[0].ID))
	_, unread, err = env.notifications.List(ctx, a1, true, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	t.Run("mark read is idempotent", func(t *testing.T) {
		first := env.repo.forRecipient("a1")[0]
		require.NotNil(t, first.ReadAt)
		readAt := *first.ReadAt
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, env.notifications.MarkRead(ctx, a1, first.ID))
		assert.True(t, env.repo.forRecipient("a1")[0].ReadAt.Equal(readAt))
	})

	t.Run("foreign or unknown id is not found", func(t *testing.T) {
		err := env.notifications.MarkRead(ctx, a1, "notif-missing")
		assert.Equal(t, "NOT_FOUND", domainCode(t, err))

		other := env.repo.forRecipient("a2")[0]
		err = env.notifications.MarkRead(ctx, a1, other.ID)
		assert.Equal(t, "NOT_FOUND", domainCode(t, err))
	})

	require.NoError(t, env.notifications.MarkAllRead(ctx, a1))
	_, unread, err = env.notifications.List(ctx, a1, false, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}
