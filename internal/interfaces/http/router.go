package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/loyverse-sri/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Invoices   InvoiceQuerier
	Processor  InvoiceProcessor
	RIDE       RIDEDownloader
	Importer   ReceiptImporter
	Config     ConfigService
	Automation AutomationController
	// JWTSecret vacío desactiva la autenticación (uso local detrás de la red interna).
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	var protected fiber.Router = api
	guard := func(...string) fiber.Handler { return func(c *fiber.Ctx) error { return c.Next() } }
	if deps.JWTSecret != "" {
		protected = api.Group("/", AuthMiddleware(deps.JWTSecret))
		guard = RequireRole
	}
	anyRole := guard(jwt.RoleAdmin, jwt.RoleOperator)
	adminOnly := guard(jwt.RoleAdmin)
	issuer := RequireIssuer(deps.Config)

	// Invoices
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.Invoices, deps.Processor, deps.RIDE)
	invoices.Get("/", anyRole, invoiceHandler.List)
	invoices.Get("/:id", anyRole, invoiceHandler.GetByID)
	invoices.Get("/:id/xml", anyRole, invoiceHandler.XML)
	invoices.Get("/:id/ride", anyRole, invoiceHandler.RIDE)
	invoices.Post("/:id/process", anyRole, issuer, invoiceHandler.Process)
	invoices.Post("/:id/retry", anyRole, issuer, invoiceHandler.Retry)

	// Receipts (importación manual)
	receipts := protected.Group("/receipts")
	receiptHandler := NewReceiptHandler(deps.Importer)
	receipts.Post("/import", anyRole, issuer, receiptHandler.Import)

	// Config del emisor
	configHandler := NewConfigHandler(deps.Config)
	protected.Get("/config", anyRole, configHandler.Get)
	protected.Put("/config", adminOnly, configHandler.Put)

	// Automatización
	automation := protected.Group("/automation")
	automationHandler := NewAutomationHandler(deps.Automation)
	automation.Get("/", anyRole, automationHandler.Status)
	automation.Post("/start", adminOnly, issuer, automationHandler.Start)
	automation.Post("/stop", adminOnly, automationHandler.Stop)
	automation.Post("/run", adminOnly, issuer, automationHandler.Run)
}
