package handlers

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/quickdesk/helpdesk/internal/api/dto"
	"github.com/quickdesk/helpdesk/internal/auth"
	"github.com/quickdesk/helpdesk/internal/domain"
	"github.com/quickdesk/helpdesk/internal/service"
	"github.com/quickdesk/helpdesk/internal/storage"
	apperrors "github.com/quickdesk/helpdesk/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets. Multipart with optional attachments.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	input := service.TicketCreateInput{
		Subject:     c.FormValue("subject"),
		Description: c.FormValue("description"),
		CategoryID:  c.FormValue("category"),
		Priority:    domain.TicketPriority(c.FormValue("priority")),
		Tags:        splitTags(c.FormValue("tags")),
		Attachments: formUploads(c),
	}

	ticket, err := h.service.Create(c.UserContext(), principal, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Ticket created successfully",
		"ticket":  ticketDetail(ticket, nil),
	})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	input := parseTicketListQuery(c)
	tickets, total, err := h.service.List(c.UserContext(), principal, input)
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	page := input.Page
	if page <= 0 {
		page = 1
	}
	return c.JSON(dto.TicketListResponse{
		Tickets:     items,
		Total:       total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, comments, err := h.service.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ticket": ticketDetail(ticket, comments)})
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Update(c.UserContext(), principal, c.Params("id"), service.TicketUpdateInput{
		Status:     req.Status,
		Priority:   req.Priority,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Ticket updated successfully",
		"ticket":  ticketDetail(ticket, nil),
	})
}

// AddComment POST /tickets/:id/comments. Multipart with optional attachments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	isInternal, _ := strconv.ParseBool(c.FormValue("isInternal"))
	comment, err := h.service.AddComment(c.UserContext(), principal, c.Params("id"),
		c.FormValue("content"), isInternal, formUploads(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Comment added successfully",
		"comment": commentResponse(comment),
	})
}

// Vote POST /tickets/:id/vote.
func (h *TicketsHandler) Vote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.service.Vote(c.UserContext(), principal, c.Params("id"), req.Type)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":   "Vote recorded successfully",
		"upvotes":   result.Upvotes,
		"downvotes": result.Downvotes,
	})
}

// DashboardStats GET /tickets/stats/dashboard.
func (h *TicketsHandler) DashboardStats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	stats, err := h.service.Stats(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(dto.StatsResponse{
		Open:       stats.Open,
		InProgress: stats.InProgress,
		Resolved:   stats.Resolved,
		Closed:     stats.Closed,
		MyTickets:  stats.MyTickets,
		ByPriority: stats.ByPriority,
	})
}

func parseTicketListQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{
		SortBy:    c.Query("sortBy", "lastActivity"),
		SortOrder: c.Query("sortOrder", "desc"),
		Page:      parseInt(c.Query("page"), 1),
		Limit:     parseInt(c.Query("limit"), 10),
	}
	if val := c.Query("status"); val != "" {
		status := domain.TicketStatus(val)
		input.Status = &status
	}
	if val := c.Query("category"); val != "" {
		input.CategoryID = &val
	}
	if val := c.Query("priority"); val != "" {
		priority := domain.TicketPriority(val)
		input.Priority = &priority
	}
	if val := c.Query("assignedTo"); val != "" {
		input.AssignedTo = &val
	}
	if val := c.Query("createdBy"); val != "" {
		input.CreatedBy = &val
	}
	if val := c.Query("search"); val != "" {
		input.Search = &val
	}
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// formUploads pulls attachment file headers out of the multipart form. A
// plain JSON request simply has none.
func formUploads(c *fiber.Ctx) []storage.Upload {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := form.File["attachments"]
	uploads := make([]storage.Upload, 0, len(files))
	for _, fh := range files {
		fh := fh
		uploads = append(uploads, storage.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			SizeBytes:   fh.Size,
			Open: func() (io.ReadCloser, error) {
				f, err := fh.Open()
				return f, err
			},
		})
	}
	return uploads
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           ticket.ID,
		DisplayID:    ticket.DisplayID,
		Subject:      ticket.Subject,
		CategoryID:   ticket.CategoryID,
		Priority:     ticket.Priority,
		Status:       ticket.Status,
		CreatedBy:    ticket.CreatedBy,
		AssignedTo:   ticket.AssignedTo,
		Tags:         ticket.Tags,
		Upvotes:      len(ticket.Upvoters),
		Downvotes:    len(ticket.Downvoters),
		LastActivity: ticket.LastActivity,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, comments []domain.Comment) dto.TicketDetailResponse {
	commentResponses := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		commentResponses = append(commentResponses, commentResponse(&comments[i]))
	}
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Description:   ticket.Description,
		Attachments:   attachmentResponses(ticket.Attachments),
		Comments:      commentResponses,
		ResolvedAt:    ticket.ResolvedAt,
		ClosedAt:      ticket.ClosedAt,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:          comment.ID,
		AuthorID:    comment.AuthorID,
		Content:     comment.Content,
		IsInternal:  comment.IsInternal,
		Attachments: attachmentResponses(comment.Attachments),
		CreatedAt:   comment.CreatedAt,
	}
}

func attachmentResponses(refs []domain.AttachmentRef) []dto.AttachmentResponse {
	responses := make([]dto.AttachmentResponse, 0, len(refs))
	for _, ref := range refs {
		responses = append(responses, dto.AttachmentResponse{
			ID:           ref.ID,
			OriginalName: ref.OriginalName,
			ContentType:  ref.ContentType,
			SizeBytes:    ref.SizeBytes,
			StorageKey:   ref.StorageKey,
		})
	}
	return responses
}
