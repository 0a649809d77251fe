package http

import (
	"context"
	"time"

	"github.com/jhoicas/loyverse-sri/internal/application/automation"
	"github.com/jhoicas/loyverse-sri/internal/application/billing"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
)

// Contratos mínimos que usan los handlers. Los implementan los casos de uso de
// billing y el programador de automation.

type InvoiceProcessor interface {
	Execute(ctx context.Context, invoiceID, action string) billing.Result
	Retry(ctx context.Context, invoiceID string) billing.Result
}

type InvoiceQuerier interface {
	List(ctx context.Context, filter repository.InvoiceFilter, page repository.Page) ([]*entity.Invoice, int, error)
	Get(ctx context.Context, id string) (*entity.Invoice, error)
	XML(ctx context.Context, id string) ([]byte, string, error)
}

type RIDEDownloader interface {
	DownloadRIDE(ctx context.Context, invoiceID string) ([]byte, string, error)
}

type ReceiptImporter interface {
	Import(ctx context.Context, since, until time.Time) (*billing.IngestSummary, error)
}

type ConfigService interface {
	Get(ctx context.Context) (*entity.IssuerConfig, error)
	Save(ctx context.Context, in *entity.IssuerConfig) (*entity.IssuerConfig, error)
}

type AutomationController interface {
	Start(ctx context.Context) error
	Stop()
	RunNow(ctx context.Context) (*billing.IngestSummary, error)
	Status(ctx context.Context) automation.Status
}
