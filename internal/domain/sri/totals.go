package sri

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// Tolerance margen admitido en toda comparación de montos.
var Tolerance = decimal.NewFromFloat(0.01)

// LineSubtotal cantidad × precio − descuento, redondeado a 2 decimales.
func LineSubtotal(quantity, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Sub(discount).Round(2)
}

// TaxAmount base × tarifa / 100, redondeado a 2 decimales.
func TaxAmount(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(hundred).Round(2)
}

// ComputeLine recalcula el subtotal del detalle y la base y el valor de cada impuesto.
func ComputeLine(line *entity.InvoiceLine) {
	line.Subtotal = LineSubtotal(line.Quantity, line.UnitPrice, line.Discount)
	for i := range line.Taxes {
		line.Taxes[i].Base = line.Subtotal
		line.Taxes[i].Amount = TaxAmount(line.Subtotal, line.Taxes[i].Rate)
	}
}

// AggregateTaxes agrupa los impuestos de los detalles por (código, codigoPorcentaje)
// conservando el orden de primera aparición.
func AggregateTaxes(lines []entity.InvoiceLine) []entity.TaxTotal {
	type key struct{ code, rate string }
	idx := map[key]int{}
	var out []entity.TaxTotal
	for _, l := range lines {
		for _, t := range l.Taxes {
			k := key{t.Code, t.RateCode}
			i, ok := idx[k]
			if !ok {
				i = len(out)
				idx[k] = i
				out = append(out, entity.TaxTotal{Code: t.Code, RateCode: t.RateCode})
			}
			out[i].Base = out[i].Base.Add(t.Base)
			out[i].Amount = out[i].Amount.Add(t.Amount)
		}
	}
	return out
}

// ApplyTotals recalcula detalles y totales de la factura:
// totalSinImpuestos, totalDescuento, totalConImpuestos e importeTotal (con propina).
func ApplyTotals(inv *entity.Invoice) {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for i := range inv.Lines {
		ComputeLine(&inv.Lines[i])
		subtotal = subtotal.Add(inv.Lines[i].Subtotal)
		discount = discount.Add(inv.Lines[i].Discount)
	}
	inv.Subtotal = subtotal
	inv.TotalDiscount = discount.Round(2)
	inv.TaxTotals = AggregateTaxes(inv.Lines)
	inv.Total = ExpectedTotal(inv.Subtotal, inv.TaxTotals, inv.Tip)
}

// ExpectedTotal subtotal + Σ impuestos + propina.
func ExpectedTotal(subtotal decimal.Decimal, taxes []entity.TaxTotal, tip decimal.Decimal) decimal.Decimal {
	total := subtotal
	for _, t := range taxes {
		total = total.Add(t.Amount)
	}
	return total.Add(tip).Round(2)
}

// WithinTolerance indica si |a − b| ≤ 0.01.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
