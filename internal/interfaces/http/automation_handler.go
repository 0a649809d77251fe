package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/loyverse-sri/internal/application/dto"
)

// AutomationHandler controla la sincronización periódica.
type AutomationHandler struct {
	ctl AutomationController
}

// NewAutomationHandler construye el handler.
func NewAutomationHandler(ctl AutomationController) *AutomationHandler {
	return &AutomationHandler{ctl: ctl}
}

// Status GET /api/automation
func (h *AutomationHandler) Status(c *fiber.Ctx) error {
	return c.JSON(dto.NewAutomationStatusResponse(h.ctl.Status(c.UserContext())))
}

// Start POST /api/automation/start
func (h *AutomationHandler) Start(c *fiber.Ctx) error {
	// el ciclo sobrevive a la petición
	if err := h.ctl.Start(context.Background()); err != nil {
		return writeError(c, err)
	}
	return h.Status(c)
}

// Stop POST /api/automation/stop
func (h *AutomationHandler) Stop(c *fiber.Ctx) error {
	h.ctl.Stop()
	return h.Status(c)
}

// Run POST /api/automation/run ejecuta una pasada inmediata.
func (h *AutomationHandler) Run(c *fiber.Ctx) error {
	sum, err := h.ctl.RunNow(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewIngestSummaryResponse(sum))
}
