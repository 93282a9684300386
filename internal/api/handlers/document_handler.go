package handlers

import (
	"io"
	"mime/multipart"

	"docflow/internal/dto"
	"docflow/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	intake    *service.IntakeService
	processor *service.Processor
	query     *service.QueryService
	logger    *zap.Logger
}

func NewDocumentHandler(intake *service.IntakeService, processor *service.Processor, query *service.QueryService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		intake:    intake,
		processor: processor,
		query:     query,
		logger:    logger,
	}
}

// UploadDocuments godoc
// @Summary Upload documents
// @Description Upload one or more invoices or receipts (pdf, tiff, jpg, jpeg, png). Each file is accepted or rejected on its own; accepted files share a batch id.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Document files"
// @Success 201 {object} dto.UploadResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/documents/upload [post]
func (h *DocumentHandler) UploadDocuments(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, h.logger, service.NewValidationError("multipart form with files is required"))
	}
	headers := append(form.File["files"], form.File["file"]...)

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}

	result, err := h.intake.Upload(c.Context(), files)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	resp := dto.UploadResponse{
		BatchID:   result.BatchID.String(),
		Documents: dto.NewDocumentResponses(result.Documents),
		Rejected:  make([]dto.RejectionResponse, 0, len(result.Rejected)),
	}
	for _, r := range result.Rejected {
		resp.Rejected = append(resp.Rejected, dto.RejectionResponse{
			FileName: r.FileName,
			Error:    r.Err.Message,
			Kind:     string(r.Err.Kind),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func uploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name:         fh.Filename,
		DeclaredType: fh.Header.Get(fiber.HeaderContentType),
		Size:         fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// ListDocuments godoc
// @Summary List documents
// @Tags documents
// @Produce json
// @Param search query string false "Substring of id or file name"
// @Param status query string false "pending, processing, processed, failed, committed or all"
// @Param batchId query string false "Upload batch id"
// @Param page query int false "0-based page"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} dto.PageResponse[dto.DocumentResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/documents [get]
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	page, size, err := parsePaging(c)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	batchID, err := parseOptionalID(c.Query("batchId"), "batchId")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	result, err := h.query.ListDocuments(c.Context(), service.DocumentQuery{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		BatchID:  batchID,
		Page:     page,
		PageSize: size,
	})
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

// GetDocument godoc
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} dto.DocumentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	doc, err := h.query.GetDocument(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewDocumentResponse(doc))
}

// ProcessDocument godoc
// @Summary Request processing of a document
// @Description Idempotent: requests for queued, processing or processed documents are no-ops.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 202 {object} dto.ProcessOutcomeResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/documents/{id}/process [post]
func (h *DocumentHandler) ProcessDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	out, err := h.processor.Request(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(outcomeResponse(*out))
}

// ProcessDocuments godoc
// @Summary Request processing of several documents
// @Tags documents
// @Accept json
// @Produce json
// @Param request body dto.ProcessBatchRequest true "Document ids"
// @Success 202 {array} dto.ProcessOutcomeResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/documents/process [post]
func (h *DocumentHandler) ProcessDocuments(c *fiber.Ctx) error {
	var req dto.ProcessBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, h.logger, service.NewValidationError("invalid request body"))
	}
	if len(req.IDs) == 0 {
		return writeError(c, h.logger, service.NewValidationError("ids must not be empty"))
	}

	resp := make([]dto.ProcessOutcomeResponse, len(req.IDs))
	valid := make([]uuid.UUID, 0, len(req.IDs))
	index := make([]int, 0, len(req.IDs))
	for i, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			resp[i] = dto.ProcessOutcomeResponse{
				DocumentID: raw,
				Outcome:    "error",
				Error:      "invalid document id",
				Kind:       string(service.KindValidation),
			}
			continue
		}
		valid = append(valid, id)
		index = append(index, i)
	}

	for j, out := range h.processor.RequestMany(c.Context(), valid) {
		resp[index[j]] = outcomeResponse(out)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// CancelDocument godoc
// @Summary Cancel processing of a document
// @Description Pending documents fail immediately with reason "cancelled"; running jobs stop at their next step.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} dto.DocumentResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/documents/{id}/cancel [post]
func (h *DocumentHandler) CancelDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	doc, err := h.processor.Cancel(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewDocumentResponse(doc))
}

// RetryDocument godoc
// @Summary Retry a failed document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 202 {object} dto.ProcessOutcomeResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/documents/{id}/retry [post]
func (h *DocumentHandler) RetryDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	out, err := h.processor.Retry(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(outcomeResponse(*out))
}

// DeleteDocument godoc
// @Summary Discard a document
// @Description Removes an uncommitted document that is not being processed, with its stored file.
// @Tags documents
// @Param id path string true "Document ID"
// @Success 204
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if err := h.processor.Discard(c.Context(), id); err != nil {
		return writeError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func outcomeResponse(out service.RequestOutcome) dto.ProcessOutcomeResponse {
	resp := dto.ProcessOutcomeResponse{DocumentID: out.DocumentID.String(), Outcome: "noop"}
	if out.Err != nil {
		resp.Outcome = "error"
		resp.Error = service.MessageOf(out.Err)
		resp.Kind = string(service.KindOf(out.Err))
		return resp
	}
	if out.Queued {
		resp.Outcome = "queued"
	}
	if out.Document != nil {
		doc := dto.NewDocumentResponse(out.Document)
		resp.Document = &doc
	}
	return resp
}
