package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
	domainsri "github.com/jhoicas/loyverse-sri/internal/domain/sri"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

// IngestSummary resumen de una importación.
type IngestSummary struct {
	From       time.Time
	To         time.Time
	Fetched    int
	Created    int
	Skipped    int
	Authorized int
	Rejected   int
	Failed     int
	Errors     []string
}

// IngestUseCase trae recibos del POS, crea las facturas y las procesa.
type IngestUseCase struct {
	invoices    repository.InvoiceRepository
	configs     repository.ConfigRepository
	sources     ReceiptSourceFactory
	mapper      *ReceiptMapper
	validator   *domainsri.Validator
	workflow    *Workflow
	concurrency int
	log         *logger.Logger
}

// NewIngestUseCase construye el caso de uso. concurrency es el número de facturas
// procesadas en paralelo (1 = secuencial).
func NewIngestUseCase(
	invoices repository.InvoiceRepository,
	configs repository.ConfigRepository,
	sources ReceiptSourceFactory,
	mapper *ReceiptMapper,
	validator *domainsri.Validator,
	workflow *Workflow,
	concurrency int,
	log *logger.Logger,
) *IngestUseCase {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &IngestUseCase{
		invoices:    invoices,
		configs:     configs,
		sources:     sources,
		mapper:      mapper,
		validator:   validator,
		workflow:    workflow,
		concurrency: concurrency,
		log:         log.Component("ingest"),
	}
}

// Import procesa los recibos creados en [since, until]. Solo devuelve error si no
// se pudo leer la configuración o consultar el POS; las fallas por recibo quedan
// en el resumen.
func (uc *IngestUseCase) Import(ctx context.Context, since, until time.Time) (*IngestSummary, error) {
	cfg, err := uc.configs.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: configuración del emisor: %w", err)
	}
	src := uc.sources(cfg.LoyverseToken)

	receipts, err := src.ListReceipts(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("ingest: listar recibos: %w", err)
	}

	sum := &IngestSummary{From: since, To: until, Fetched: len(receipts)}
	uc.log.Info().Time("since", since).Time("until", until).Int("receipts", len(receipts)).Msg("recibos obtenidos")

	customers := map[string]*entity.Customer{}
	var created []string
	for i := range receipts {
		rc := &receipts[i]
		id, err := uc.create(ctx, src, rc, cfg, customers)
		switch {
		case err == nil && id == "":
			sum.Skipped++
		case err == nil:
			sum.Created++
			created = append(created, id)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return sum, err
		default:
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("recibo %s: %v", rc.Number, err))
			uc.log.Warn().Err(err).Str("receipt", rc.Number).Msg("recibo no importado")
		}
	}

	uc.processAll(ctx, created, sum)

	uc.log.Info().
		Int("created", sum.Created).
		Int("skipped", sum.Skipped).
		Int("authorized", sum.Authorized).
		Int("rejected", sum.Rejected).
		Int("failed", sum.Failed).
		Msg("importación terminada")
	return sum, nil
}

// create mapea, valida y persiste el recibo como factura PENDING. Devuelve "" sin
// error cuando el recibo se omite (devolución, anulado o ya importado).
func (uc *IngestUseCase) create(
	ctx context.Context,
	src ReceiptSource,
	rc *entity.Receipt,
	cfg *entity.IssuerConfig,
	customers map[string]*entity.Customer,
) (string, error) {
	if !rc.Billable() {
		return "", nil
	}
	if _, err := uc.invoices.GetByLoyverseID(ctx, rc.Number); err == nil {
		return "", nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	if rc.CustomerID == "" {
		return "", fmt.Errorf("%w: el recibo no tiene cliente asociado", domain.ErrInvalidInput)
	}
	c, ok := customers[rc.CustomerID]
	if !ok {
		var err error
		if c, err = src.GetCustomer(ctx, rc.CustomerID); err != nil {
			return "", fmt.Errorf("obtener cliente %s: %w", rc.CustomerID, err)
		}
		customers[rc.CustomerID] = c
	}
	rc.Customer = c

	inv, err := uc.mapper.Map(rc, cfg)
	if err != nil {
		return "", err
	}
	if err := uc.validator.ValidateInvoice(inv); err != nil {
		return "", err
	}
	if err := uc.invoices.Create(ctx, inv); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return "", nil
		}
		return "", err
	}
	return inv.ID, nil
}

// processAll pasa cada factura nueva por el flujo completo con concurrencia acotada.
func (uc *IngestUseCase) processAll(ctx context.Context, ids []string, sum *IngestSummary) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			res := uc.workflow.Process(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch res.Data.Status {
			case entity.InvoiceStatusAuthorized:
				sum.Authorized++
			case entity.InvoiceStatusRejected:
				sum.Rejected++
			case entity.InvoiceStatusSent, entity.InvoiceStatusSigned:
				// pendiente de autorización; se recupera con la acción authorize
			default:
				sum.Failed++
				sum.Errors = append(sum.Errors, fmt.Sprintf("factura %s: %s", id, res.Message))
			}
			return nil
		})
	}
	_ = g.Wait()
}
