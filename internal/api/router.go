package api

import (
	"docflow/docs"
	"docflow/internal/api/handlers"
	"docflow/pkg/auth"
	"docflow/pkg/config"
	"docflow/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Documents *handlers.DocumentHandler
	Events    *handlers.EventsHandler
	Review    *handlers.ReviewHandler
	Invoices  *handlers.InvoiceHandler
	Clients   *handlers.ClientHandler
	Dashboard *handlers.DashboardHandler
	Health    *handlers.HealthHandler
}

// SetupRouter builds the HTTP application. A nil jwtManager leaves the API
// unauthenticated.
func SetupRouter(
	h Handlers,
	serverCfg *config.ServerConfig,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "docflow",
		BodyLimit:    serverCfg.BodyLimit,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			kind := "internal"
			switch {
			case code == fiber.StatusNotFound:
				kind = "not_found"
			case code < fiber.StatusInternalServerError:
				kind = "validation"
			default:
				appLogger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
				"kind":  kind,
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())
	app.Use(middleware.Metrics())

	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/health", h.Health.Health)

	if jwtManager != nil {
		api.Use(middleware.AuthMiddleware(jwtManager, appLogger))
		appLogger.Info("JWT authentication enabled")
	}

	// Document routes
	documents := api.Group("/documents")
	documents.Get("", h.Documents.ListDocuments)
	documents.Get("/events", h.Events.StreamDocumentEvents)
	documents.Post("/upload", h.Documents.UploadDocuments)
	documents.Post("/process", h.Documents.ProcessDocuments)
	documents.Get("/:id", h.Documents.GetDocument)
	documents.Delete("/:id", h.Documents.DeleteDocument)
	documents.Post("/:id/process", h.Documents.ProcessDocument)
	documents.Post("/:id/cancel", h.Documents.CancelDocument)
	documents.Post("/:id/retry", h.Documents.RetryDocument)

	api.Get("/batches/:id", h.Dashboard.GetBatch)

	// Review routes
	review := api.Group("/review")
	review.Get("", h.Review.ListPendingReview)
	review.Post("/:id/commit", h.Review.CommitDocument)

	// Invoice routes
	invoices := api.Group("/invoices")
	invoices.Get("", h.Invoices.ListInvoices)
	invoices.Post("", h.Invoices.CreateInvoice)
	invoices.Get("/export", h.Invoices.ExportInvoices)
	invoices.Get("/:id", h.Invoices.GetInvoice)
	invoices.Get("/:id/export", h.Invoices.ExportInvoice)
	invoices.Put("/:id", h.Invoices.UpdateInvoice)
	invoices.Delete("/:id", h.Invoices.DeleteInvoice)
	invoices.Post("/:id/send", h.Invoices.SendInvoice)
	invoices.Post("/:id/payment", h.Invoices.RecordPayment)
	invoices.Delete("/:id/payment", h.Invoices.ReversePayment)

	api.Get("/clients", h.Clients.ListClients)
	api.Get("/clients/:id", h.Clients.GetClient)
	api.Get("/dashboard/summary", h.Dashboard.Summary)

	return app
}
