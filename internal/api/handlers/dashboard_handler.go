package handlers

import (
	"docflow/internal/dto"
	"docflow/internal/models"
	"docflow/internal/service"
	"docflow/internal/wizard"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	query  *service.QueryService
	logger *zap.Logger
}

func NewDashboardHandler(query *service.QueryService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{query: query, logger: logger}
}

// Summary godoc
// @Summary Invoice and document totals
// @Description Invoice counts and amounts per effective status, the outstanding amount and document counts per status.
// @Tags dashboard
// @Produce json
// @Success 200 {object} dto.SummaryResponse
// @Router /api/dashboard/summary [get]
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	s, err := h.query.Summary(c.Context())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	resp := dto.SummaryResponse{
		Invoices:    make(map[string]dto.StatusTotalResponse, len(s.Invoices)),
		Outstanding: dto.NewMoney(s.Outstanding),
		Documents:   make(map[string]int, len(s.Documents)),
	}
	for st, t := range s.Invoices {
		resp.Invoices[string(st)] = dto.StatusTotalResponse{Count: t.Count, Amount: dto.NewMoney(t.Amount)}
	}
	for st, n := range s.Documents {
		resp.Documents[string(st)] = n
	}
	return c.JSON(resp)
}

// GetBatch godoc
// @Summary Upload batch state
// @Description Documents of one upload with failure reasons and the upload wizard state they allow.
// @Tags documents
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} dto.BatchResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/batches/{id} [get]
func (h *DashboardHandler) GetBatch(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	docs, err := h.query.BatchDocuments(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	failed := make([]dto.FailedDocument, 0)
	for _, d := range docs {
		if d.Status == models.DocumentStatusFailed {
			failed = append(failed, dto.FailedDocument{
				ID:       d.ID.String(),
				FileName: d.FileName,
				Reason:   d.ErrorReason,
				CanRetry: true,
			})
		}
	}
	return c.JSON(dto.BatchResponse{
		BatchID:   id.String(),
		Documents: dto.NewDocumentResponses(docs),
		Failed:    failed,
		Wizard:    wizard.Evaluate(docs),
	})
}
