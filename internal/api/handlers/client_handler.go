package handlers

import (
	"docflow/internal/dto"
	"docflow/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ClientHandler struct {
	clients *service.ClientDirectory
	logger  *zap.Logger
}

func NewClientHandler(clients *service.ClientDirectory, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{clients: clients, logger: logger}
}

// ListClients godoc
// @Summary List clients
// @Tags clients
// @Produce json
// @Success 200 {array} dto.ClientResponse
// @Router /api/clients [get]
func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.clients.List(c.Context())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	resp := make([]dto.ClientResponse, 0, len(clients))
	for _, cl := range clients {
		resp = append(resp, dto.NewClientResponse(cl))
	}
	return c.JSON(resp)
}

// GetClient godoc
// @Summary Get a client
// @Tags clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} dto.ClientResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/clients/{id} [get]
func (h *ClientHandler) GetClient(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.logger, err)
	}
	cl, err := h.clients.Get(c.Context(), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(dto.NewClientResponse(cl))
}
