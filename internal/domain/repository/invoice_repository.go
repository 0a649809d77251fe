package repository

import (
	"context"
	"time"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

// InvoiceFilter criterios de búsqueda del listado de facturas. Campos vacíos no filtran.
type InvoiceFilter struct {
	Environment string
	Status      string
	BuyerTaxID  string
	From        *time.Time // created_at >= From
	To          *time.Time // created_at < To
}

// Page paginación simple por limit/offset.
type Page struct {
	Limit  int
	Offset int
}

// InvoiceRepository define el puerto de persistencia para Invoice e historial de estados.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	// Update persiste estado, clave de acceso, XML (solo si autorizada), respuesta del SRI
	// y agrega al historial las entradas nuevas de invoice.History.
	Update(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetByLoyverseID(ctx context.Context, loyverseID string) (*entity.Invoice, error)
	// List devuelve la página pedida (más recientes primero) y el total sin paginar.
	List(ctx context.Context, filter InvoiceFilter, page Page) ([]*entity.Invoice, int, error)
}
