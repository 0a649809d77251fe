package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/loyverse-sri/internal/application/billing"
	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	domainsri "github.com/jhoicas/loyverse-sri/internal/domain/sri"
	infrasri "github.com/jhoicas/loyverse-sri/internal/infrastructure/sri"
)

func recibo(number, customerID string) entity.Receipt {
	return entity.Receipt{
		Number:     number,
		Type:       entity.ReceiptTypeSale,
		CreatedAt:  hoy,
		CustomerID: customerID,
		Total:      d("21.28"),
		Lines: []entity.ReceiptLine{{
			ItemID: "it-1", ItemName: "Café", VariantName: "Grande", SKU: "CAF-G",
			Quantity: d("2"), Price: d("10"), TotalDiscount: d("1"),
			Taxes: []entity.ReceiptLineTax{{Type: entity.TaxTypeAdded, Name: "IVA", Rate: d("12"), Amount: d("2.28")}},
		}},
	}
}

func clientes() map[string]*entity.Customer {
	return map[string]*entity.Customer{
		"cli-1": {ID: "cli-1", Code: "1710034065", Name: "Juan Pérez", Email: "juan@correo.ec"},
		"cli-2": {ID: "cli-2", Code: "", Name: "Sin RUC"},
	}
}

type entornoIngesta struct {
	*entorno
	source *fakeSource
	uc     *billing.IngestUseCase
}

func nuevaIngesta(receipts ...entity.Receipt) *entornoIngesta {
	e := nuevoEntorno(0)
	src := &fakeSource{receipts: receipts, customers: clientes()}
	factory := func(token string) billing.ReceiptSource {
		src.token = token
		return src
	}
	mapper := billing.NewReceiptMapper(e.clock, nil)
	uc := billing.NewIngestUseCase(e.invoices, e.configs, factory, mapper, domainsri.NewValidator(e.clock), e.wf, 2, nil)
	return &entornoIngesta{entorno: e, source: src, uc: uc}
}

func TestImport_CreaYAutoriza(t *testing.T) {
	e := nuevaIngesta(recibo("1-1001", "cli-1"), recibo("1-1002", "cli-1"))

	sum, err := e.uc.Import(context.Background(), hoy.Add(-24*time.Hour), hoy)

	require.NoError(t, err)
	assert.Equal(t, 2, sum.Fetched)
	assert.Equal(t, 2, sum.Created)
	assert.Equal(t, 2, sum.Authorized)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, "tok-emisor", e.source.token)
	assert.Equal(t, 1, e.source.customerCalls, "el cliente se consulta una vez por importación")

	inv, err := e.invoices.GetByLoyverseID(context.Background(), "1-1001")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusAuthorized, inv.Status)
	assert.Equal(t, "000011001", inv.Sequential)
}

func TestImport_OmiteDevolucionesYDuplicados(t *testing.T) {
	devolucion := recibo("1-1003", "cli-1")
	devolucion.Type = entity.ReceiptTypeRefund
	anulado := recibo("1-1004", "cli-1")
	cancelled := hoy
	anulado.CancelledAt = &cancelled

	e := nuevaIngesta(recibo("1-1001", "cli-1"), devolucion, anulado)
	_, err := e.uc.Import(context.Background(), time.Time{}, hoy)
	require.NoError(t, err)

	sum, err := e.uc.Import(context.Background(), time.Time{}, hoy)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, sum.Created)
	assert.Equal(t, 1, e.gateway.submits())
}

func TestImport_ReciboSinRUCFalla(t *testing.T) {
	e := nuevaIngesta(recibo("1-1001", "cli-2"), recibo("1-1002", ""), recibo("1-1005", "cli-1"))

	sum, err := e.uc.Import(context.Background(), time.Time{}, hoy)

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 2, sum.Failed)
	require.Len(t, sum.Errors, 2)
	assert.Contains(t, sum.Errors[0], "1-1001")
}

func TestImport_RechazosEnElResumen(t *testing.T) {
	e := nuevaIngesta(recibo("1-1001", "cli-1"))
	e.gateway.reception = []infrasri.ReceptionResult{{Status: infrasri.ReceptionRejected}}

	sum, err := e.uc.Import(context.Background(), time.Time{}, hoy)

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rejected)
	assert.Zero(t, sum.Authorized)
}

func TestImport_ErrorDelPOS(t *testing.T) {
	e := nuevaIngesta()
	e.source.err = domain.ErrUnauthorized

	_, err := e.uc.Import(context.Background(), time.Time{}, hoy)

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestImport_SinConfiguracion(t *testing.T) {
	e := nuevaIngesta()
	e.configs.cfg = nil

	_, err := e.uc.Import(context.Background(), time.Time{}, hoy)

	assert.True(t, errors.Is(err, domain.ErrNoConfig))
}

func TestReceiptMapper_Map(t *testing.T) {
	clock := clockwork.NewFakeClockAt(hoy)
	m := billing.NewReceiptMapper(clock, nil)
	rc := recibo("1-1001", "cli-1")
	rc.Customer = clientes()["cli-1"]

	inv, err := m.Map(&rc, emisor())
	require.NoError(t, err)

	assert.Equal(t, "13/12/2025", inv.IssueDate)
	assert.Equal(t, "05", inv.BuyerIDType)
	assert.Equal(t, "Café - Grande", inv.Lines[0].Description)
	assert.Equal(t, "CAF-G", inv.Lines[0].Code)
	assert.Equal(t, "19.00", inv.Lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, "2", inv.Lines[0].Taxes[0].RateCode)
	assert.Equal(t, "2.28", inv.TaxTotals[0].Amount.StringFixed(2))
	assert.Equal(t, "21.28", inv.Total.StringFixed(2))
	assert.Equal(t, "SI", inv.AccountingRequired)
	assert.Equal(t, entity.InvoiceStatusPending, inv.Status)
	assert.Equal(t, []entity.AdditionalField{
		{Name: "Email", Value: "juan@correo.ec"},
		{Name: "Teléfono", Value: "N/A"},
		{Name: "Origen", Value: "Loyverse"},
		{Name: "Recibo", Value: "1-1001"},
	}, inv.AdditionalInfo)
	assert.NoError(t, domainsri.NewValidator(clock).ValidateInvoice(inv))
}

func TestReceiptMapper_IVAIncluidoYTarifaDelEmisor(t *testing.T) {
	m := billing.NewReceiptMapper(clockwork.NewFakeClockAt(hoy), nil)
	rc := recibo("7", "cli-1")
	rc.Customer = clientes()["cli-1"]
	rc.Lines = []entity.ReceiptLine{
		{ItemID: "it-1", ItemName: "Sánduche", Quantity: d("1"), Price: d("11.50"),
			Taxes: []entity.ReceiptLineTax{{Type: entity.TaxTypeIncluded, Rate: d("15")}}},
		{ItemID: "it-2", ItemName: "Agua", Quantity: d("1"), Price: d("1")},
	}

	inv, err := m.Map(&rc, emisor())
	require.NoError(t, err)

	assert.Equal(t, "10.00", inv.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "it-1", inv.Lines[0].Code)
	assert.Equal(t, "4", inv.Lines[0].Taxes[0].RateCode)
	assert.Equal(t, "4", inv.Lines[1].Taxes[0].RateCode, "sin impuestos usa la tarifa del emisor (15 %)")
	require.Len(t, inv.TaxTotals, 1)
	assert.Equal(t, "1.65", inv.TaxTotals[0].Amount.StringFixed(2))
	assert.Equal(t, "000000007", inv.Sequential)
}

func TestReceiptMapper_ClienteSinCodigo(t *testing.T) {
	m := billing.NewReceiptMapper(nil, nil)
	rc := recibo("1", "cli-2")
	rc.Customer = clientes()["cli-2"]

	_, err := m.Map(&rc, emisor())
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	rc.Customer = nil
	_, err = m.Map(&rc, emisor())
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
