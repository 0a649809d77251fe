package entity

import "github.com/shopspring/decimal"

// InvoiceLine representa un detalle de la factura.
type InvoiceLine struct {
	Code        string          `json:"code"` // codigoPrincipal
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"` // precioTotalSinImpuesto
	Taxes       []LineTax       `json:"taxes"`
}

// LineTax impuesto aplicado a un detalle.
type LineTax struct {
	Code     string          `json:"code"`      // 2 = IVA
	RateCode string          `json:"rate_code"` // codigoPorcentaje
	Rate     decimal.Decimal `json:"rate"`      // tarifa en porcentaje
	Base     decimal.Decimal `json:"base"`
	Amount   decimal.Decimal `json:"amount"`
}

// TaxTotal impuesto agregado por (código, codigoPorcentaje).
type TaxTotal struct {
	Code     string          `json:"code"`
	RateCode string          `json:"rate_code"`
	Base     decimal.Decimal `json:"base"`
	Amount   decimal.Decimal `json:"amount"`
}
