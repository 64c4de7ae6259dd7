package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickdesk/helpdesk/internal/domain"
)

// NotificationRepository persists per-recipient notification records.
type NotificationRepository interface {
	InsertMany(ctx context.Context, notifications []domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

// InsertMany bulk-inserts via COPY; the fan-out to all agents on ticket
// creation is the hot path here.
func (r *notificationRepository) InsertMany(ctx context.Context, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"notifications"},
		[]string{"recipient_id", "sender_id", "type", "title", "message", "related_ticket_id"},
		pgx.CopyFromSlice(len(notifications), func(i int) ([]any, error) {
			n := notifications[i]
			return []any{n.RecipientID, n.SenderID, n.Type, n.Title, n.Message, n.RelatedTicketID}, nil
		}),
	)
	return err
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	query := `
        SELECT id, recipient_id, sender_id, type, title, message, related_ticket_id, is_read, read_at, created_at
        FROM notifications WHERE recipient_id=$1`
	if unreadOnly {
		query += ` AND is_read=FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.SenderID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.RelatedTicketID,
			&n.IsRead,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read=FALSE`
	var count int
	err := r.pool.QueryRow(ctx, query, recipientID).Scan(&count)
	return count, err
}

// MarkRead flips the notification to read for its recipient. COALESCE keeps
// the first read timestamp on repeated calls. Returns false when no
// notification with that id belongs to the recipient.
func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) (bool, error) {
	const query = `
        UPDATE notifications SET is_read=TRUE, read_at=COALESCE(read_at, $3)
        WHERE id=$1 AND recipient_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, recipientID, readAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int64, error) {
	const query = `
        UPDATE notifications SET is_read=TRUE, read_at=COALESCE(read_at, $2)
        WHERE recipient_id=$1 AND is_read=FALSE`
	cmd, err := r.pool.Exec(ctx, query, recipientID, readAt)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
