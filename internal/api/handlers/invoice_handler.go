package handlers

import (
	"fmt"
	"time"

	"docflow/internal/dto"
	"docflow/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InvoiceHandler struct {
	invoices *service.InvoiceService
	logger   *zap.Logger
}

func NewInvoiceHandler(invoices *service.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, logger: logger}
}

// ListInvoices godoc
// @Summary List invoices
// @Description Case-insensitive search over id, number, client name and matter. Status filters by effective status, so overdue is derived on every call.
// @Tags invoices
// @Produce json
// @Param search query string false "Search text"
// @Param status query string false "draft, sent, overdue, paid or all"
// @Param page query int false "0-based page"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} dto.PageResponse[dto.InvoiceResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *fiber.Ctx) error {
	page, size, err := parsePaging(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	result, err := h.invoices.List(c.Context(), service.InvoiceQuery{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.PageResponse[dto.InvoiceResponse]{
		Items:    dto.NewInvoiceResponses(result.Items, time.Now()),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// ExportInvoices godoc
// @Summary Export invoices as XLSX
// @Tags invoices
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param search query string false "Search text"
// @Param status query string false "draft, sent, overdue, paid or all"
// @Success 200 {file} binary
// @Router /api/invoices/export [get]
func (h *InvoiceHandler) ExportInvoices(c *fiber.Ctx) error {
	data, err := h.invoices.Export(c.Context(), service.InvoiceQuery{
		Search: c.Query("search"),
		Status: c.Query("status"),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="invoices-%s.xlsx"`, time.Now().UTC().Format("20060102")))
	return c.Send(data)
}

// ExportInvoice godoc
// @Summary Export one invoice with its line items as XLSX
// @Tags invoices
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Invoice ID"
// @Success 200 {file} binary
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/invoices/{id}/export [get]
func (h *InvoiceHandler) ExportInvoice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	data, number, err := h.invoices.ExportOne(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.xlsx"`, number))
	return c.Send(data)
}

// GetInvoice godoc
// @Summary Get an invoice
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	inv, err := h.invoices.Get(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv, time.Now()))
}

// CreateInvoice godoc
// @Summary Create a draft invoice
// @Tags invoices
// @Accept json
// @Produce json
// @Param request body dto.InvoiceRequest true "Invoice"
// @Success 201 {object} dto.InvoiceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *fiber.Ctx) error {
	in, err := h.parseInput(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	inv, err := h.invoices.Create(c.Context(), in)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewInvoiceResponse(inv, time.Now()))
}

// UpdateInvoice godoc
// @Summary Update a draft invoice
// @Tags invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.InvoiceRequest true "Invoice"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	in, err := h.parseInput(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	inv, err := h.invoices.Update(c.Context(), id, in)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv, time.Now()))
}

// DeleteInvoice godoc
// @Summary Delete a draft invoice
// @Tags invoices
// @Param id path string true "Invoice ID"
// @Success 204
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if err := h.invoices.Delete(c.Context(), id); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendInvoice godoc
// @Summary Send a draft invoice
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invoices/{id}/send [post]
func (h *InvoiceHandler) SendInvoice(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	inv, err := h.invoices.Send(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv, time.Now()))
}

// RecordPayment godoc
// @Summary Record payment of a sent invoice
// @Tags invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.PaymentRequest false "Payment date, defaults to today"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invoices/{id}/payment [post]
func (h *InvoiceHandler) RecordPayment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	var req dto.PaymentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, h.logger, service.NewValidationError("invalid request body"))
		}
	}
	inv, err := h.invoices.RecordPayment(c.Context(), id, req.PaymentDate)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv, time.Now()))
}

// ReversePayment godoc
// @Summary Reverse the payment of an invoice
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invoices/{id}/payment [delete]
func (h *InvoiceHandler) ReversePayment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	inv, err := h.invoices.ReversePayment(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv, time.Now()))
}

func (h *InvoiceHandler) parseInput(c *fiber.Ctx) (service.InvoiceInput, error) {
	var req dto.InvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return service.InvoiceInput{}, service.NewValidationError("invalid request body: %v", err)
	}
	clientID, err := parseOptionalID(deref(req.ClientID), "clientId")
	if err != nil {
		return service.InvoiceInput{}, err
	}
	items := make([]service.LineItemInput, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		items = append(items, service.LineItemInput{
			Description: li.Description,
			Quantity:    li.Quantity.Decimal,
			Rate:        li.Rate.Decimal,
		})
	}
	return service.InvoiceInput{
		Number:    req.Number,
		ClientID:  clientID,
		Matter:    req.Matter,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
		LineItems: items,
		Notes:     req.Notes,
		Terms:     req.Terms,
	}, nil
}
