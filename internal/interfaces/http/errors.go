package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/loyverse-sri/internal/application/dto"
	"github.com/jhoicas/loyverse-sri/internal/domain"
)

// writeError traduce errores de dominio a respuestas HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var (
		certErr      *domain.CertificateError
		transportErr *domain.TransportError
	)
	switch {
	case errors.Is(err, domain.ErrNoConfig):
		return fail(c, fiber.StatusPreconditionFailed, "NO_CONFIG", err)
	case errors.Is(err, domain.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, domain.ErrInvalidInput), errors.As(err, &certErr):
		return fail(c, fiber.StatusBadRequest, "VALIDATION", err)
	case errors.Is(err, domain.ErrForbidden):
		return fail(c, fiber.StatusForbidden, "FORBIDDEN", err)
	case errors.Is(err, domain.ErrAlreadyRunning):
		return fail(c, fiber.StatusConflict, "ALREADY_RUNNING", err)
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate):
		return fail(c, fiber.StatusConflict, "CONFLICT", err)
	case errors.Is(err, domain.ErrUnauthorized):
		// credenciales del POS rechazadas; no es un problema del token de la API
		return fail(c, fiber.StatusBadGateway, "UPSTREAM_UNAUTHORIZED", err)
	case errors.As(err, &transportErr):
		return fail(c, fiber.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err)
	default:
		return fail(c, fiber.StatusInternalServerError, "INTERNAL", err)
	}
}

func fail(c *fiber.Ctx, status int, code string, err error) error {
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: message})
}
