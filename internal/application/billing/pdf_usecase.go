package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
)

// PDFUseCase genera el RIDE de una factura autorizada.
type PDFUseCase struct {
	invoices  repository.InvoiceRepository
	configs   repository.ConfigRepository
	generator RIDEGenerator
}

// NewPDFUseCase construye el caso de uso.
func NewPDFUseCase(invoices repository.InvoiceRepository, configs repository.ConfigRepository, generator RIDEGenerator) *PDFUseCase {
	return &PDFUseCase{invoices: invoices, configs: configs, generator: generator}
}

// DownloadRIDE devuelve el PDF y el nombre de archivo sugerido.
//
// Retorna:
//   - domain.ErrNotFound     si la factura no existe.
//   - domain.ErrInvalidInput si la factura aún no está autorizada.
func (uc *PDFUseCase) DownloadRIDE(ctx context.Context, invoiceID string) (pdf []byte, filename string, err error) {
	inv, err := uc.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("ride: obtener factura: %w", err)
	}
	if inv.Status != entity.InvoiceStatusAuthorized {
		return nil, "", fmt.Errorf("%w: la factura está en estado %s, el RIDE requiere autorización",
			domain.ErrInvalidInput, inv.Status)
	}

	// El RIDE se imprime aunque no haya configuración activa; solo se pierden email y teléfono.
	issuer, err := uc.configs.GetActive(ctx)
	if err != nil {
		issuer = nil
	}

	pdf, err = uc.generator.GenerateRIDE(ctx, inv, issuer)
	if err != nil {
		return nil, "", fmt.Errorf("ride: generación fallida: %w", err)
	}
	return pdf, "RIDE_" + inv.Number() + ".pdf", nil
}
