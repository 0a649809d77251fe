package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/loyverse-sri/internal/application/dto"
	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

// configReader es lo mínimo que necesita el middleware para saber si hay emisor.
type configReader interface {
	Get(ctx context.Context) (*entity.IssuerConfig, error)
}

// RequireIssuer corta con 412 las rutas que emiten comprobantes si aún no hay
// perfil del emisor activo.
//
// Comportamiento:
//   - 412 Precondition Failed → no hay configuración activa.
//   - 503 Service Unavailable → falla al consultar la base.
func RequireIssuer(configs configReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, err := configs.Get(c.UserContext())
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, domain.ErrNoConfig), errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{
				Code:    "NO_CONFIG",
				Message: "configure el emisor (PUT /api/config) antes de emitir comprobantes",
			})
		default:
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "CONFIG_CHECK_FAILED",
				Message: "no se pudo verificar la configuración, intente más tarde",
			})
		}
	}
}
