package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	domainsri "github.com/jhoicas/loyverse-sri/internal/domain/sri"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
	"github.com/jhoicas/loyverse-sri/pkg/sri"
)

// ecuador hora local continental (UTC-5, sin horario de verano).
var ecuador = time.FixedZone("ECT", -5*60*60)

const notAvailable = "N/A"

// ReceiptMapper convierte recibos del POS en facturas PENDING.
type ReceiptMapper struct {
	clock clockwork.Clock
	log   *logger.Logger
}

// NewReceiptMapper construye el mapper. clock nil usa el reloj real.
func NewReceiptMapper(clock clockwork.Clock, log *logger.Logger) *ReceiptMapper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ReceiptMapper{clock: clock, log: log.Component("receipt_mapper")}
}

// Map arma la factura a partir del recibo y del perfil del emisor. El recibo debe
// traer el cliente resuelto y con customer_code (RUC o cédula).
func (m *ReceiptMapper) Map(rc *entity.Receipt, cfg *entity.IssuerConfig) (*entity.Invoice, error) {
	if rc.Customer == nil {
		return nil, fmt.Errorf("%w: el recibo %s no tiene cliente asociado", domain.ErrInvalidInput, rc.Number)
	}
	if strings.TrimSpace(rc.Customer.Code) == "" {
		return nil, fmt.Errorf("%w: el cliente del recibo %s no tiene RUC o cédula", domain.ErrInvalidInput, rc.Number)
	}
	if len(rc.Lines) == 0 {
		return nil, fmt.Errorf("%w: el recibo %s no tiene líneas", domain.ErrInvalidInput, rc.Number)
	}

	now := m.clock.Now()
	c := rc.Customer
	taxID := strings.TrimSpace(c.Code)

	inv := &entity.Invoice{
		ID:         uuid.New().String(),
		LoyverseID: rc.Number,

		Environment:   cfg.Environment,
		EmissionType:  sri.TipoEmisionNormal,
		IssuerName:    cfg.LegalName,
		TradeName:     cfg.TradeName,
		IssuerRUC:     cfg.RUC,
		DocType:       sri.CodDocFactura,
		Establishment: cfg.Establishment,
		EmissionPoint: cfg.EmissionPoint,
		Sequential:    domainsri.Sequential(rc.Number),
		MatrixAddress: cfg.MatrixAddress,

		IssueDate:            rc.CreatedAt.In(ecuador).Format("02/01/2006"),
		EstablishmentAddress: cfg.EstablishmentAddressOrMatrix(),
		SpecialTaxpayer:      cfg.SpecialTaxpayer,
		AccountingRequired:   cfg.AccountingFlag(),
		BuyerIDType:          sri.BuyerIDType(taxID),
		Buyer: entity.Buyer{
			TaxID:   taxID,
			Name:    strings.TrimSpace(c.Name),
			Address: c.Address,
			Phone:   c.Phone,
			Email:   c.Email,
		},

		Tip:      rc.Tip,
		Currency: sri.Moneda,
		AdditionalInfo: []entity.AdditionalField{
			{Name: "Email", Value: orDefault(c.Email, notAvailable)},
			{Name: "Teléfono", Value: orDefault(c.Phone, notAvailable)},
			{Name: "Origen", Value: "Loyverse"},
			{Name: "Recibo", Value: rc.Number},
		},
		CreatedAt: now,
	}

	for _, l := range rc.Lines {
		inv.Lines = append(inv.Lines, mapLine(l, cfg.IVARate))
	}
	domainsri.ApplyTotals(inv)

	if !rc.Total.IsZero() && !domainsri.WithinTolerance(inv.Total, rc.Total) {
		m.log.Warn().
			Str("receipt", rc.Number).
			Str("computed", inv.Total.StringFixed(2)).
			Str("receipt_total", rc.Total.StringFixed(2)).
			Msg("el total calculado difiere del total del recibo")
	}

	inv.AppendHistory(entity.InvoiceStatusPending, now, "importada desde el recibo "+rc.Number)
	return inv, nil
}

// mapLine arma el detalle con IVA. La tarifa sale del recibo o, si la línea no
// trae impuestos, de la tarifa del emisor. Con impuesto incluido en el precio se
// usa el precio neto.
func mapLine(l entity.ReceiptLine, defaultRate decimal.Decimal) entity.InvoiceLine {
	rate := defaultRate
	included := false
	if len(l.Taxes) > 0 {
		rate = decimal.Zero
		for _, t := range l.Taxes {
			rate = rate.Add(t.Rate)
			if t.Type == entity.TaxTypeIncluded {
				included = true
			}
		}
	}

	price, discount := l.Price, l.TotalDiscount
	if included && rate.IsPositive() {
		factor := decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
		price = price.Div(factor).Round(2)
		discount = discount.Div(factor).Round(2)
	}

	code := l.SKU
	if code == "" {
		code = l.ItemID
	}
	desc := l.ItemName
	if l.VariantName != "" {
		desc += " - " + l.VariantName
	}

	line := entity.InvoiceLine{
		Code:        code,
		Description: desc,
		Quantity:    l.Quantity,
		UnitPrice:   price,
		Discount:    discount,
		Taxes: []entity.LineTax{{
			Code:     sri.ImpuestoIVA,
			RateCode: sri.IVARateCode(rate),
			Rate:     rate,
		}},
	}
	domainsri.ComputeLine(&line)
	return line
}
