package handlers

import (
	"strconv"

	"docflow/internal/dto"
	"docflow/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return fiber.StatusBadRequest
	case service.KindNotFound:
		return fiber.StatusNotFound
	case service.KindConflict:
		return fiber.StatusConflict
	case service.KindExtraction:
		return fiber.StatusUnprocessableEntity
	case service.KindStorage:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as {"error", "kind"} with the status of its kind.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	kind := service.KindOf(err)
	status := statusFor(kind)
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: service.MessageOf(err),
		Kind:  string(kind),
	})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	raw := c.Params(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, service.NewValidationError("invalid %s %q", param, raw)
	}
	return id, nil
}

func parseOptionalID(raw, name string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, service.NewValidationError("invalid %s %q", name, raw)
	}
	return &id, nil
}

// parsePaging reads the 0-based page and pageSize query parameters.
func parsePaging(c *fiber.Ctx) (int, int, error) {
	page, err := queryInt(c, "page", 0)
	if err != nil {
		return 0, 0, err
	}
	size, err := queryInt(c, "pageSize", service.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if page < 0 {
		return 0, 0, service.NewValidationError("page must not be negative")
	}
	if size < 1 || size > service.MaxPageSize {
		return 0, 0, service.NewValidationError("pageSize must be between 1 and %d", service.MaxPageSize)
	}
	return page, size, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, service.NewValidationError("%s must be an integer", key)
	}
	return v, nil
}
