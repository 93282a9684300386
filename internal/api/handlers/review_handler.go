package handlers

import (
	"time"

	"docflow/internal/dto"
	"docflow/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ReviewHandler struct {
	review *service.ReviewService
	logger *zap.Logger
}

func NewReviewHandler(review *service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{review: review, logger: logger}
}

// ListPendingReview godoc
// @Summary List processed documents awaiting review
// @Tags review
// @Produce json
// @Param page query int false "0-based page"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} dto.PageResponse[dto.DocumentResponse]
// @Router /api/review [get]
func (h *ReviewHandler) ListPendingReview(c *fiber.Ctx) error {
	page, size, err := parsePaging(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	result, err := h.review.ListPendingReview(c.Context(), page, size)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.PageResponse[dto.DocumentResponse]{
		Items:    dto.NewDocumentResponses(result.Items),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// CommitDocument godoc
// @Summary Commit a reviewed document as an invoice
// @Description Creates a draft invoice, or updates the draft named by invoiceId, and marks the document committed in one transaction.
// @Tags review
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body dto.CommitRequest true "Reviewed fields"
// @Success 201 {object} dto.CommitResponse
// @Success 200 {object} dto.CommitResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/review/{id}/commit [post]
func (h *ReviewHandler) CommitDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var req dto.CommitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, h.logger, service.NewValidationError("invalid request body"))
		}
	}
	target, err := parseOptionalID(deref(req.InvoiceID), "invoiceId")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	result, err := h.review.Commit(c.Context(), id, service.CommitRequest{
		Fields:    req.Fields,
		InvoiceID: target,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.CommitResponse{
		Document: dto.NewDocumentResponse(result.Document),
		Invoice:  dto.NewInvoiceResponse(result.Invoice, time.Now()),
		Created:  result.Created,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
