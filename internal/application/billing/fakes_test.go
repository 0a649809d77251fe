package billing_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
	infrasri "github.com/jhoicas/loyverse-sri/internal/infrastructure/sri"
)

// ── Repositorios en memoria ───────────────────────────────────────────────────

type memInvoices struct {
	mu      sync.Mutex
	byID    map[string]*entity.Invoice
	updates int
	failOn  string // Update falla cuando la factura llega con este estado
}

func newMemInvoices(invs ...*entity.Invoice) *memInvoices {
	m := &memInvoices{byID: map[string]*entity.Invoice{}}
	for _, inv := range invs {
		m.byID[inv.ID] = clone(inv)
	}
	return m
}

func clone(inv *entity.Invoice) *entity.Invoice {
	cp := *inv
	cp.Lines = append([]entity.InvoiceLine(nil), inv.Lines...)
	cp.TaxTotals = append([]entity.TaxTotal(nil), inv.TaxTotals...)
	cp.AdditionalInfo = append([]entity.AdditionalField(nil), inv.AdditionalInfo...)
	cp.History = append([]entity.StatusEntry(nil), inv.History...)
	return &cp
}

func (m *memInvoices) Create(_ context.Context, inv *entity.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if inv.LoyverseID != "" && e.LoyverseID == inv.LoyverseID {
			return domain.ErrDuplicate
		}
	}
	m.byID[inv.ID] = clone(inv)
	return nil
}

// Update imita el COALESCE del repositorio real: un XML vacío no borra el guardado.
func (m *memInvoices) Update(_ context.Context, inv *entity.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[inv.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if m.failOn != "" && inv.Status == m.failOn {
		return errors.New("db caída")
	}
	cp := clone(inv)
	if cp.SignedXML == "" {
		cp.SignedXML = prev.SignedXML
	}
	if cp.UnsignedXML == "" {
		cp.UnsignedXML = prev.UnsignedXML
	}
	if cp.AccessKey == "" {
		cp.AccessKey = prev.AccessKey
	}
	m.byID[inv.ID] = cp
	m.updates++
	return nil
}

func (m *memInvoices) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(inv), nil
}

func (m *memInvoices) GetByLoyverseID(_ context.Context, loyverseID string) (*entity.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.byID {
		if inv.LoyverseID == loyverseID {
			return clone(inv), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memInvoices) List(_ context.Context, _ repository.InvoiceFilter, _ repository.Page) ([]*entity.Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Invoice, 0, len(m.byID))
	for _, inv := range m.byID {
		out = append(out, clone(inv))
	}
	return out, len(out), nil
}

func (m *memInvoices) get(id string) *entity.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.byID[id])
}

type memConfigs struct {
	mu       sync.Mutex
	cfg      *entity.IssuerConfig
	lastSync *time.Time
}

func (m *memConfigs) GetActive(context.Context) (*entity.IssuerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, domain.ErrNoConfig
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *memConfigs) Save(_ context.Context, cfg *entity.IssuerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.cfg = &cp
	return nil
}

func (m *memConfigs) UpdateLastSync(_ context.Context, _ string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSync = &at
	if m.cfg != nil {
		m.cfg.LastSyncAt = &at
	}
	return nil
}

// ── Firma y SRI ───────────────────────────────────────────────────────────────

type fakeSigner struct {
	mu       sync.Mutex
	err      error
	calls    int
	password string
}

func (s *fakeSigner) Sign(xml, p12 []byte, password string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.password = password
	if s.err != nil {
		return nil, s.err
	}
	return bytes.Replace(xml, []byte("</factura>"), []byte("<ds:Signature/></factura>"), 1), nil
}

type fakeGateway struct {
	mu          sync.Mutex
	reception   []infrasri.ReceptionResult
	auth        []infrasri.AuthorizationResult
	submitted   []string
	authQueried []string
}

func (g *fakeGateway) Submit(_ context.Context, _, accessKey string, _ []byte) infrasri.ReceptionResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted = append(g.submitted, accessKey)
	if len(g.reception) == 0 {
		return infrasri.ReceptionResult{Status: infrasri.ReceptionReceived}
	}
	r := g.reception[0]
	if len(g.reception) > 1 {
		g.reception = g.reception[1:]
	}
	return r
}

func (g *fakeGateway) CheckAuthorization(_ context.Context, _, accessKey string) infrasri.AuthorizationResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authQueried = append(g.authQueried, accessKey)
	if len(g.auth) == 0 {
		return infrasri.AuthorizationResult{Status: infrasri.AuthorizationAuthorized, Number: accessKey}
	}
	r := g.auth[0]
	if len(g.auth) > 1 {
		g.auth = g.auth[1:]
	}
	return r
}

func (g *fakeGateway) submits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submitted)
}

// ── POS ───────────────────────────────────────────────────────────────────────

type fakeSource struct {
	receipts      []entity.Receipt
	customers     map[string]*entity.Customer
	customerCalls int
	err           error
	token         string
}

func (s *fakeSource) ListReceipts(_ context.Context, _, _ time.Time) ([]entity.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]entity.Receipt(nil), s.receipts...), nil
}

func (s *fakeSource) GetCustomer(_ context.Context, id string) (*entity.Customer, error) {
	s.customerCalls++
	c, ok := s.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

var hoy = time.Date(2025, 12, 13, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func emisor() *entity.IssuerConfig {
	return &entity.IssuerConfig{
		ID:                  "cfg-1",
		Environment:         "1",
		RUC:                 "1790011674001",
		LegalName:           "Cafetería Andina S.A.",
		TradeName:           "Café Andino",
		MatrixAddress:       "Av. Amazonas N34",
		Establishment:       "001",
		EmissionPoint:       "002",
		Email:               "caja@andino.ec",
		IVARate:             d("15"),
		AccountingRequired:  true,
		LoyverseToken:       "tok-emisor",
		CertificateB64:      "Y2VydGlmaWNhZG8=",
		CertificatePassword: "secreto",
		Active:              true,
	}
}

func facturaPendiente(id string) *entity.Invoice {
	inv := &entity.Invoice{
		ID:                   id,
		Environment:          "1",
		EmissionType:         "1",
		IssuerName:           "Cafetería Andina S.A.",
		TradeName:            "Café Andino",
		IssuerRUC:            "1790011674001",
		DocType:              "01",
		Establishment:        "001",
		EmissionPoint:        "002",
		Sequential:           "000000123",
		MatrixAddress:        "Av. Amazonas N34",
		IssueDate:            "13/12/2025",
		EstablishmentAddress: "Av. Amazonas N34",
		AccountingRequired:   "SI",
		BuyerIDType:          "05",
		Buyer:                entity.Buyer{TaxID: "1710034065", Name: "Juan Pérez"},
		Lines: []entity.InvoiceLine{{
			Code: "CAF-G", Description: "Café - Grande",
			Quantity: d("2"), UnitPrice: d("10"), Discount: d("1"), Subtotal: d("19"),
			Taxes: []entity.LineTax{{Code: "2", RateCode: "2", Rate: d("12"), Base: d("19"), Amount: d("2.28")}},
		}},
		Subtotal:      d("19"),
		TotalDiscount: d("1"),
		TaxTotals:     []entity.TaxTotal{{Code: "2", RateCode: "2", Base: d("19"), Amount: d("2.28")}},
		Total:         d("21.28"),
		Currency:      "DOLAR",
		CreatedAt:     hoy,
	}
	inv.AppendHistory(entity.InvoiceStatusPending, hoy, "creada")
	return inv
}
