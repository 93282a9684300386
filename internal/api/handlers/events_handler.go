package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"docflow/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const keepAliveInterval = 15 * time.Second

type EventsHandler struct {
	broker *service.Broker
	logger *zap.Logger
}

func NewEventsHandler(broker *service.Broker, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{broker: broker, logger: logger}
}

// StreamDocumentEvents godoc
// @Summary Stream document status changes
// @Description Server-Sent Events; each "document" event carries the document id, status, progress and failure reason.
// @Tags documents
// @Produce text/event-stream
// @Param batchId query string false "Only events of this upload batch"
// @Success 200 {object} service.DocumentEvent
// @Router /api/documents/events [get]
func (h *EventsHandler) StreamDocumentEvents(c *fiber.Ctx) error {
	batchID, err := parseOptionalID(c.Query("batchId"), "batchId")
	if err != nil {
		return writeError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, unsubscribe := h.broker.Subscribe()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if batchID != nil && ev.BatchID != *batchID {
					continue
				}
				data, err := json.Marshal(ev)
				if err != nil {
					h.logger.Error("Failed to encode document event", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: document\ndata: %s\n\n", data)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			// A failed flush means the client went away.
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
