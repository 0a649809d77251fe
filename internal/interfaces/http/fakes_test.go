package http_test

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/application/automation"
	"github.com/jhoicas/loyverse-sri/internal/application/billing"
	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
	apphttp "github.com/jhoicas/loyverse-sri/internal/interfaces/http"
)

type fakeQuerier struct {
	invoices map[string]*entity.Invoice
	filter   repository.InvoiceFilter
	page     repository.Page
}

func (f *fakeQuerier) List(_ context.Context, filter repository.InvoiceFilter, page repository.Page) ([]*entity.Invoice, int, error) {
	f.filter, f.page = filter, page
	out := make([]*entity.Invoice, 0, len(f.invoices))
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (f *fakeQuerier) Get(_ context.Context, id string) (*entity.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (f *fakeQuerier) XML(ctx context.Context, id string) ([]byte, string, error) {
	inv, err := f.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if inv.SignedXML == "" {
		return nil, "", domain.ErrNotFound
	}
	return []byte(inv.SignedXML), inv.AccessKey + ".xml", nil
}

type fakeProcessor struct {
	mu      sync.Mutex
	actions []string
	result  billing.Result
}

func (f *fakeProcessor) Execute(_ context.Context, _, action string) billing.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return f.result
}

func (f *fakeProcessor) Retry(ctx context.Context, id string) billing.Result {
	return f.Execute(ctx, id, "retry")
}

type fakeRIDE struct {
	err error
}

func (f *fakeRIDE) DownloadRIDE(_ context.Context, id string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("%PDF-1.4 " + id), "RIDE_001-002-000000123.pdf", nil
}

type fakeImporter struct {
	since, until time.Time
	sum          *billing.IngestSummary
	err          error
}

func (f *fakeImporter) Import(_ context.Context, since, until time.Time) (*billing.IngestSummary, error) {
	f.since, f.until = since, until
	if f.err != nil {
		return nil, f.err
	}
	return f.sum, nil
}

type fakeConfig struct {
	cfg   *entity.IssuerConfig
	saved *entity.IssuerConfig
	err   error
}

func (f *fakeConfig) Get(context.Context) (*entity.IssuerConfig, error) {
	if f.cfg == nil {
		return nil, domain.ErrNoConfig
	}
	return f.cfg, nil
}

func (f *fakeConfig) Save(_ context.Context, in *entity.IssuerConfig) (*entity.IssuerConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = in
	in.ID = "cfg-1"
	return in, nil
}

type fakeAutomation struct {
	status   automation.Status
	startErr error
	runErr   error
	sum      *billing.IngestSummary
	stops    int
}

func (f *fakeAutomation) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.status.Active = true
	return nil
}

func (f *fakeAutomation) Stop() {
	f.stops++
	f.status.Active = false
}

func (f *fakeAutomation) RunNow(context.Context) (*billing.IngestSummary, error) {
	return f.sum, f.runErr
}

func (f *fakeAutomation) Status(context.Context) automation.Status { return f.status }

// ── Fixtures ──────────────────────────────────────────────────────────────────

type entorno struct {
	app        *fiber.App
	query      *fakeQuerier
	processor  *fakeProcessor
	ride       *fakeRIDE
	importer   *fakeImporter
	config     *fakeConfig
	automation *fakeAutomation
}

func nuevoEntorno(secret string) *entorno {
	e := &entorno{
		query: &fakeQuerier{invoices: map[string]*entity.Invoice{
			"inv-1": autorizada("inv-1"),
		}},
		processor:  &fakeProcessor{},
		ride:       &fakeRIDE{},
		importer:   &fakeImporter{sum: &billing.IngestSummary{Fetched: 3, Created: 2, Skipped: 1, Authorized: 2}},
		config:     &fakeConfig{cfg: emisor()},
		automation: &fakeAutomation{status: automation.Status{Interval: 30 * time.Minute}},
	}
	e.app = fiber.New()
	apphttp.Router(e.app, apphttp.RouterDeps{
		Invoices:   e.query,
		Processor:  e.processor,
		RIDE:       e.ride,
		Importer:   e.importer,
		Config:     e.config,
		Automation: e.automation,
		JWTSecret:  secret,
	})
	return e
}

func emisor() *entity.IssuerConfig {
	return &entity.IssuerConfig{
		ID:                  "cfg-1",
		Environment:         "1",
		RUC:                 "1790011674001",
		LegalName:           "Cafetería Andina S.A.",
		MatrixAddress:       "Av. Amazonas N34",
		Establishment:       "001",
		EmissionPoint:       "002",
		Email:               "caja@andino.ec",
		IVARate:             decimal.NewFromInt(15),
		LoyverseToken:       "tok-emisor",
		CertificateB64:      "Y2VydGlmaWNhZG8=",
		CertificatePassword: "secreto",
		Active:              true,
	}
}

func autorizada(id string) *entity.Invoice {
	at := time.Date(2025, 12, 13, 15, 0, 5, 0, time.UTC)
	inv := &entity.Invoice{
		ID:                  id,
		LoyverseID:          "1-1001",
		Environment:         "1",
		IssuerRUC:           "1790011674001",
		IssuerName:          "Cafetería Andina S.A.",
		Establishment:       "001",
		EmissionPoint:       "002",
		Sequential:          "000000123",
		IssueDate:           "13/12/2025",
		BuyerIDType:         "05",
		Buyer:               entity.Buyer{TaxID: "1710034065", Name: "Juan Pérez"},
		Total:               decimal.RequireFromString("21.28"),
		AccessKey:           "1312202501179001167400110010020000001231234567811",
		SignedXML:           `<factura id="comprobante"><ds:Signature/></factura>`,
		AuthorizationNumber: "1312202501179001167400110010020000001231234567811",
		AuthorizationDate:   &at,
	}
	inv.AppendHistory(entity.InvoiceStatusPending, at, "importada")
	inv.AppendHistory(entity.InvoiceStatusAuthorized, at, "autorizada")
	return inv
}
