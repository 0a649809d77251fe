package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
)

// QueryUseCase consultas de facturas para la API de administración.
type QueryUseCase struct {
	invoices repository.InvoiceRepository
}

// NewQueryUseCase construye el caso de uso.
func NewQueryUseCase(invoices repository.InvoiceRepository) *QueryUseCase {
	return &QueryUseCase{invoices: invoices}
}

// List devuelve la página pedida, más recientes primero, y el total.
func (uc *QueryUseCase) List(ctx context.Context, filter repository.InvoiceFilter, page repository.Page) ([]*entity.Invoice, int, error) {
	return uc.invoices.List(ctx, filter, page)
}

// Get obtiene una factura con su historial.
func (uc *QueryUseCase) Get(ctx context.Context, id string) (*entity.Invoice, error) {
	return uc.invoices.GetByID(ctx, id)
}

// XML devuelve el XML firmado persistido. Solo existe para facturas autorizadas.
func (uc *QueryUseCase) XML(ctx context.Context, id string) ([]byte, string, error) {
	inv, err := uc.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if inv.SignedXML == "" {
		return nil, "", fmt.Errorf("%w: la factura %s (estado %s) no tiene XML autorizado", domain.ErrNotFound, inv.Number(), inv.Status)
	}
	name := inv.AccessKey
	if name == "" {
		name = inv.ID
	}
	return []byte(inv.SignedXML), name + ".xml", nil
}
