package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/loyverse-sri/internal/application/dto"
)

// ReceiptHandler importación manual de recibos del POS.
type ReceiptHandler struct {
	importer ReceiptImporter
	now      func() time.Time
}

// NewReceiptHandler construye el handler.
func NewReceiptHandler(importer ReceiptImporter) *ReceiptHandler {
	return &ReceiptHandler{importer: importer, now: time.Now}
}

// Import godoc
// @Summary      Importar y procesar recibos de Loyverse
// @Tags         receipts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ImportRequest  false  "since/until en RFC 3339 o YYYY-MM-DD"
// @Success      200  {object}  dto.IngestSummaryResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/receipts/import [post]
func (h *ReceiptHandler) Import(c *fiber.Ctx) error {
	var in dto.ImportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "INVALID_BODY", "cuerpo inválido")
		}
	}

	until := h.now()
	if in.Until != "" {
		t, err := parseInstant(in.Until)
		if err != nil {
			return badRequest(c, "VALIDATION", "until debe ser RFC 3339 o YYYY-MM-DD")
		}
		until = t
	}
	since := until.Add(-24 * time.Hour)
	if in.Since != "" {
		t, err := parseInstant(in.Since)
		if err != nil {
			return badRequest(c, "VALIDATION", "since debe ser RFC 3339 o YYYY-MM-DD")
		}
		since = t
	}
	if !since.Before(until) {
		return badRequest(c, "VALIDATION", "since debe ser anterior a until")
	}

	sum, err := h.importer.Import(c.UserContext(), since, until)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewIngestSummaryResponse(sum))
}

func parseInstant(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, ecuador)
}
