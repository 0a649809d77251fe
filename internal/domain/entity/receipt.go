package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de recibo del POS.
const (
	ReceiptTypeSale   = "SALE"
	ReceiptTypeRefund = "REFUND"

	// TaxTypeIncluded impuesto incluido en el precio; ADDED se suma aparte.
	TaxTypeIncluded = "INCLUDED"
	TaxTypeAdded    = "ADDED"
)

// Receipt recibo de venta tal como lo entrega el POS, antes de mapearse a factura.
type Receipt struct {
	Number      string // receipt_number; identifica el recibo de forma única
	Type        string
	CreatedAt   time.Time
	CancelledAt *time.Time
	CustomerID  string
	Customer    *Customer // se completa al mapear
	Note        string

	Total         decimal.Decimal
	TotalTax      decimal.Decimal
	TotalDiscount decimal.Decimal
	Tip           decimal.Decimal
	Lines         []ReceiptLine
}

// ReceiptLine línea de un recibo.
type ReceiptLine struct {
	ItemID        string
	ItemName      string
	VariantName   string
	SKU           string
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	GrossTotal    decimal.Decimal
	Total         decimal.Decimal
	TotalDiscount decimal.Decimal
	Taxes         []ReceiptLineTax
}

// ReceiptLineTax impuesto aplicado a una línea (tasa en porcentaje).
type ReceiptLineTax struct {
	Type   string
	Name   string
	Rate   decimal.Decimal
	Amount decimal.Decimal
}

// Billable indica si el recibo debe facturarse: ventas no anuladas.
func (r *Receipt) Billable() bool {
	return r.Type != ReceiptTypeRefund && r.CancelledAt == nil
}
