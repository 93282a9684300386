package handlers

import (
	"context"

	"docflow/internal/dto"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
	logger *zap.Logger
}

func NewHealthHandler(checks map[string]HealthCheck, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// Health godoc
// @Summary Liveness and dependency check
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	for name, check := range h.checks {
		if err := check(c.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: name + " is unavailable",
				Kind:  "storage",
			})
		}
	}
	return c.JSON(dto.HealthResponse{Status: "ok"})
}
