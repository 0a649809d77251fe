package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/loyverse-sri/internal/application/billing"
	"github.com/jhoicas/loyverse-sri/internal/application/dto"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
)

// ecuador zona usada para interpretar los filtros de fecha.
var ecuador = time.FixedZone("ECT", -5*60*60)

// InvoiceHandler consulta y acciones manuales sobre facturas.
type InvoiceHandler struct {
	query     InvoiceQuerier
	processor InvoiceProcessor
	ride      RIDEDownloader
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(query InvoiceQuerier, processor InvoiceProcessor, ride RIDEDownloader) *InvoiceHandler {
	return &InvoiceHandler{query: query, processor: processor, ride: ride}
}

// List godoc
// @Summary      Listar facturas (más recientes primero)
// @Tags         invoices
// @Security     Bearer
// @Produce      json
// @Param        environment   query  string  false  "1 pruebas, 2 producción"
// @Param        status        query  string  false  "PENDING|SIGNED|SENT|AUTHORIZED|REJECTED|ERROR"
// @Param        buyer_tax_id  query  string  false  "RUC o cédula del comprador"
// @Param        from          query  string  false  "YYYY-MM-DD"
// @Param        to            query  string  false  "YYYY-MM-DD (inclusive)"
// @Param        limit         query  int     false  "máximo 100"
// @Param        offset        query  int     false  "desplazamiento"
// @Success      200  {object}  dto.InvoiceListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/invoices [get]
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	var q dto.InvoiceListQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "INVALID_QUERY", "parámetros inválidos")
	}
	page := dto.PageRequest{Limit: q.Limit, Offset: q.Offset}
	page.DefaultPage()

	filter := repository.InvoiceFilter{
		Environment: q.Environment,
		Status:      q.Status,
		BuyerTaxID:  q.BuyerTaxID,
	}
	if q.From != "" {
		from, err := time.ParseInLocation(time.DateOnly, q.From, ecuador)
		if err != nil {
			return badRequest(c, "INVALID_QUERY", "from debe tener formato YYYY-MM-DD")
		}
		filter.From = &from
	}
	if q.To != "" {
		to, err := time.ParseInLocation(time.DateOnly, q.To, ecuador)
		if err != nil {
			return badRequest(c, "INVALID_QUERY", "to debe tener formato YYYY-MM-DD")
		}
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}

	invoices, total, err := h.query.List(c.UserContext(), filter, repository.Page{Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return writeError(c, err)
	}
	out := dto.InvoiceListResponse{
		Items: make([]dto.InvoiceSummary, 0, len(invoices)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}
	for _, inv := range invoices {
		out.Items = append(out.Items, dto.NewInvoiceSummary(inv))
	}
	return c.JSON(out)
}

// GetByID detalle con historial.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	inv, err := h.query.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// XML descarga el comprobante firmado y autorizado.
// GET /api/invoices/:id/xml
func (h *InvoiceHandler) XML(c *fiber.Ctx) error {
	body, filename, err := h.query.XML(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.Send(body)
}

// RIDE descarga la representación impresa en PDF.
// GET /api/invoices/:id/ride
func (h *InvoiceHandler) RIDE(c *fiber.Ctx) error {
	pdf, filename, err := h.ride.DownloadRIDE(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Attachment(filename)
	return c.Send(pdf)
}

// Process godoc
// @Summary      Ejecutar una acción manual del flujo SRI
// @Tags         invoices
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "id de la factura"
// @Param        action  query  string  false  "sign|send|authorize|full (por defecto full)"
// @Success      200  {object}  dto.ProcessResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ProcessResponse
// @Router       /api/invoices/{id}/process [post]
func (h *InvoiceHandler) Process(c *fiber.Ctx) error {
	action := c.Query("action", billing.ActionFull)
	switch action {
	case billing.ActionSign, billing.ActionSend, billing.ActionAuthorize, billing.ActionFull:
	default:
		return badRequest(c, "INVALID_ACTION", "action debe ser sign, send, authorize o full")
	}
	id := c.Params("id")
	if _, err := h.query.Get(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return h.respond(c, h.processor.Execute(c.UserContext(), id, action))
}

// Retry reinicia el ciclo desde la firma conservando la clave de acceso.
// POST /api/invoices/:id/retry
func (h *InvoiceHandler) Retry(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.query.Get(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return h.respond(c, h.processor.Retry(c.UserContext(), id))
}

// respond 200 si la acción tuvo éxito y 422 si la factura quedó rechazada o con error.
func (h *InvoiceHandler) respond(c *fiber.Ctx, res billing.Result) error {
	out := dto.ProcessResponse{
		Success:     res.Success,
		Message:     res.Message,
		Status:      res.Data.Status,
		SignedXML:   res.Data.SignedXML,
		UnsignedXML: res.Data.UnsignedXML,
	}
	if res.Data.Invoice != nil {
		out.Invoice = dto.NewInvoiceResponse(res.Data.Invoice)
	}
	status := fiber.StatusOK
	if !res.Success {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(out)
}
