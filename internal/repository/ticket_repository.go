package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickdesk/helpdesk/internal/domain"
)

// TicketFilter captures listing parameters. CreatedBy is forced by the
// service for end-user callers; the repository applies whatever it is given.
type TicketFilter struct {
	CreatedBy  *string
	AssignedTo *string
	CategoryID *string
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	Search     *string
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

// sortColumns whitelists ORDER BY targets. mostReplied orders by comment
// count, computed per row.
var sortColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"lastActivity": "last_activity",
	"subject":      "subject",
	"displayId":    "display_id",
	"status":       "status",
	"priority":     "priority",
	"category":     "category_id",
	"createdBy":    "created_by",
	"assignedTo":   "assigned_to",
	"mostReplied":  "(SELECT COUNT(*) FROM ticket_comments c WHERE c.ticket_id = tickets.id)",
}

// sortExpression resolves the caller-facing sort key and order into an ORDER
// BY clause body. Unknown keys fall back to lastActivity, anything but "asc"
// sorts descending.
func sortExpression(sortBy, sortOrder string) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = sortColumns["lastActivity"]
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

// TicketRepository encapsulates ticket aggregate persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	AddComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error)
	SetVote(ctx context.Context, ticketID, principalID string, direction domain.VoteDirection) (int, int, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
	CountAssignedTo(ctx context.Context, principalID string) (int, error)
	CountByPriority(ctx context.Context) (map[domain.TicketPriority]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// Create inserts the ticket and its creation attachments in one transaction.
// The display id comes from a database sequence, so concurrent creates can
// never collide.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO tickets (display_id, subject, description, category_id, priority, status, created_by, assigned_to, tags)
        VALUES ('QD-' || lpad(nextval('ticket_display_id_seq')::text, 6, '0'), $1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, display_id, created_at, updated_at, last_activity`
	if err := tx.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.CategoryID,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.Tags,
	).Scan(&ticket.ID, &ticket.DisplayID, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.LastActivity); err != nil {
		return err
	}

	for i := range ticket.Attachments {
		att := &ticket.Attachments[i]
		att.TicketID = ticket.ID
		if err := insertAttachment(ctx, tx, att); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertAttachment(ctx context.Context, tx pgx.Tx, att *domain.AttachmentRef) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, comment_id, storage_key, original_name, content_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		att.TicketID,
		att.CommentID,
		att.StorageKey,
		att.OriginalName,
		att.ContentType,
		att.SizeBytes,
	).Scan(&att.ID, &att.CreatedAt)
}

const ticketColumns = `
        id, display_id, subject, description, category_id, priority, status,
        created_by, assigned_to, tags, resolved_at, closed_at, last_activity,
        created_at, updated_at,
        COALESCE((SELECT array_agg(principal_id::text) FROM ticket_votes v
                  WHERE v.ticket_id = tickets.id AND v.direction = 'upvote'), '{}'),
        COALESCE((SELECT array_agg(principal_id::text) FROM ticket_votes v
                  WHERE v.ticket_id = tickets.id AND v.direction = 'downvote'), '{}')`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	ticket, err := scanTicket(row)
	if err != nil {
		return nil, err
	}

	attachments, err := r.listTicketAttachments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Attachments = attachments
	return ticket, nil
}

// Update persists the mutable lifecycle fields. The database bumps
// last_activity and updated_at itself.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, assigned_to=$3, resolved_at=$4, closed_at=$5,
            tags=$6, last_activity=NOW(), updated_at=NOW()
        WHERE id=$7
        RETURNING last_activity, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.Tags,
		ticket.ID,
	).Scan(&ticket.LastActivity, &ticket.UpdatedAt)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses,
			fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s OR LOWER(display_id) LIKE %s)",
				placeholder, placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM tickets WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketColumns, where, sortExpression(filter.SortBy, filter.SortOrder), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

// AddComment appends the comment, its attachments and the lastActivity bump
// atomically, preserving the single-document append contract of the source
// data model.
func (r *ticketRepository) AddComment(ctx context.Context, comment *domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertComment = `
        INSERT INTO ticket_comments (ticket_id, author_id, content, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertComment,
		comment.TicketID,
		comment.AuthorID,
		comment.Content,
		comment.IsInternal,
	).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return err
	}

	for i := range comment.Attachments {
		att := &comment.Attachments[i]
		att.TicketID = comment.TicketID
		commentID := comment.ID
		att.CommentID = &commentID
		if err := insertAttachment(ctx, tx, att); err != nil {
			return err
		}
	}

	const bump = `UPDATE tickets SET last_activity=NOW(), updated_at=NOW() WHERE id=$1`
	cmd, err := tx.Exec(ctx, bump, comment.TicketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, content, is_internal, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Content,
			&comment.IsInternal,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.attachCommentAttachments(ctx, ticketID, comments)
}

func (r *ticketRepository) attachCommentAttachments(ctx context.Context, ticketID string, comments []domain.Comment) ([]domain.Comment, error) {
	if len(comments) == 0 {
		return comments, nil
	}
	const query = `
        SELECT id, ticket_id, comment_id, storage_key, original_name, content_type, size_bytes, created_at
        FROM ticket_attachments WHERE ticket_id=$1 AND comment_id IS NOT NULL
        ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byComment := make(map[string][]domain.AttachmentRef)
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		if att.CommentID != nil {
			byComment[*att.CommentID] = append(byComment[*att.CommentID], *att)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range comments {
		comments[i].Attachments = byComment[comments[i].ID]
	}
	return comments, nil
}

func (r *ticketRepository) listTicketAttachments(ctx context.Context, ticketID string) ([]domain.AttachmentRef, error) {
	const query = `
        SELECT id, ticket_id, comment_id, storage_key, original_name, content_type, size_bytes, created_at
        FROM ticket_attachments WHERE ticket_id=$1 AND comment_id IS NULL
        ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []domain.AttachmentRef
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, *att)
	}
	return attachments, rows.Err()
}

// SetVote replaces the caller's vote with the given direction. The primary
// key on (ticket_id, principal_id) makes the cross-set move a single upsert.
func (r *ticketRepository) SetVote(ctx context.Context, ticketID, principalID string, direction domain.VoteDirection) (int, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const upsert = `
        INSERT INTO ticket_votes (ticket_id, principal_id, direction)
        VALUES ($1,$2,$3)
        ON CONFLICT (ticket_id, principal_id) DO UPDATE SET direction=EXCLUDED.direction`
	if _, err := tx.Exec(ctx, upsert, ticketID, principalID, direction); err != nil {
		return 0, 0, err
	}

	const bump = `UPDATE tickets SET last_activity=NOW(), updated_at=NOW() WHERE id=$1`
	if _, err := tx.Exec(ctx, bump, ticketID); err != nil {
		return 0, 0, err
	}

	const counts = `
        SELECT COUNT(*) FILTER (WHERE direction='upvote'),
               COUNT(*) FILTER (WHERE direction='downvote')
        FROM ticket_votes WHERE ticket_id=$1`
	var upvotes, downvotes int
	if err := tx.QueryRow(ctx, counts, ticketID).Scan(&upvotes, &downvotes); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return upvotes, downvotes, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM tickets GROUP BY status`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountAssignedTo(ctx context.Context, principalID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE assigned_to=$1`
	var count int
	err := r.pool.QueryRow(ctx, query, principalID).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByPriority(ctx context.Context) (map[domain.TicketPriority]int, error) {
	const query = `SELECT priority, COUNT(*) FROM tickets GROUP BY priority`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketPriority]int)
	for rows.Next() {
		var priority domain.TicketPriority
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		result[priority] = count
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.DisplayID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.CategoryID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Tags,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.LastActivity,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Upvoters,
		&ticket.Downvoters,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanAttachment(rows pgx.Rows) (*domain.AttachmentRef, error) {
	var att domain.AttachmentRef
	if err := rows.Scan(
		&att.ID,
		&att.TicketID,
		&att.CommentID,
		&att.StorageKey,
		&att.OriginalName,
		&att.ContentType,
		&att.SizeBytes,
		&att.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &att, nil
}
