package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/loyverse-sri/internal/application/dto"
)

// ConfigHandler perfil del emisor.
type ConfigHandler struct {
	svc ConfigService
}

// NewConfigHandler construye el handler.
func NewConfigHandler(svc ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// Get GET /api/config
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.svc.Get(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewConfigResponse(cfg))
}

// Put PUT /api/config
func (h *ConfigHandler) Put(c *fiber.Ctx) error {
	var in dto.ConfigRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	cfg, err := h.svc.Save(c.UserContext(), in.ToEntity())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewConfigResponse(cfg))
}
