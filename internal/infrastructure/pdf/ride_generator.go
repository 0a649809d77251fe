// Package pdf genera el RIDE (Representación Impresa del Documento Electrónico)
// de una factura autorizada por el SRI.
//
// Layout de la página A4:
//
//	┌──────────────────────────────┬──────────────────────────────┐
//	│ EMISOR: razón social, RUC,   │ FACTURA N° 001-001-000000123 │
//	│ matriz, establecimiento,     │ autorización + fecha         │
//	│ contabilidad                 │ ambiente / emisión           │
//	│                              │ clave de acceso (Code128)    │
//	├──────────────────────────────┴──────────────────────────────┤
//	│ COMPRADOR: nombre, identificación, fecha de emisión          │
//	├──────────────────────────────────────────────────────────────┤
//	│ Cód | Cant | Descripción | P.Unit | Desc. | Subtotal         │
//	├──────────────────────────────┬──────────────────────────────┤
//	│ Información adicional        │ Subtotales por tarifa, IVA,  │
//	│                              │ propina, VALOR TOTAL         │
//	└──────────────────────────────┴──────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/barcode"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/pkg/sri"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// RIDEGenerator genera el RIDE con Maroto v2.
type RIDEGenerator struct{}

// NewRIDEGenerator construye el generador.
func NewRIDEGenerator() *RIDEGenerator { return &RIDEGenerator{} }

// GenerateRIDE genera el PDF y devuelve sus bytes. Solo acepta facturas AUTHORIZED.
func (g *RIDEGenerator) GenerateRIDE(_ context.Context, inv *entity.Invoice, issuer *entity.IssuerConfig) ([]byte, error) {
	if inv.Status != entity.InvoiceStatusAuthorized {
		return nil, fmt.Errorf("%w: el RIDE solo se emite para facturas autorizadas (estado %s)",
			domain.ErrInvalidInput, inv.Status)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 8}).
		WithTitle("RIDE Factura "+inv.Number(), true).
		WithAuthor(inv.IssuerName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv, issuer))
	m.AddRows(accessKeyRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(buyerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(detailRows(inv.Lines)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(footerRow(inv))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar RIDE: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(inv *entity.Invoice, issuer *entity.IssuerConfig) core.Row {
	left := []core.Component{
		text.New(clean(inv.IssuerName), props.Text{Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1}),
	}
	top := 8.0
	add := func(label, value string) {
		if value == "" {
			return
		}
		left = append(left, text.New(label+clean(value), props.Text{Size: 8, Top: top, Color: colorGray}))
		top += 5
	}
	add("", inv.TradeName)
	add("Dir. Matriz: ", inv.MatrixAddress)
	add("Dir. Sucursal: ", inv.EstablishmentAddress)
	if inv.SpecialTaxpayer != "" {
		add("Contribuyente Especial Nro: ", inv.SpecialTaxpayer)
	}
	add("Obligado a llevar contabilidad: ", inv.AccountingRequired)
	if issuer != nil {
		add("Email: ", issuer.Email)
		add("Tel: ", issuer.Phone)
	}

	authDate := ""
	if inv.AuthorizationDate != nil {
		authDate = inv.AuthorizationDate.Format("02/01/2006 15:04:05")
	}

	return row.New(62).Add(
		col.New(6).Add(left...),
		col.New(6).Add(
			text.New("R.U.C.: "+inv.IssuerRUC, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 1}),
			text.New("FACTURA", props.Text{Style: fontstyle.Bold, Size: 12, Align: align.Right, Color: colorPrimary, Top: 7}),
			text.New("No. "+inv.Number(), props.Text{Size: 10, Align: align.Right, Top: 13}),
			text.New("NÚMERO DE AUTORIZACIÓN", props.Text{Style: fontstyle.Bold, Size: 7, Align: align.Right, Top: 19}),
			text.New(inv.AuthorizationNumber, props.Text{Size: 7, Align: align.Right, Top: 23}),
			text.New("FECHA Y HORA DE AUTORIZACIÓN: "+authDate, props.Text{Size: 7, Align: align.Right, Top: 28}),
			text.New("AMBIENTE: "+strings.ToUpper(sri.AmbienteName(inv.Environment))+"   EMISIÓN: NORMAL",
				props.Text{Size: 7, Align: align.Right, Top: 33}),
			text.New("CLAVE DE ACCESO", props.Text{Style: fontstyle.Bold, Size: 7, Align: align.Right, Top: 38}),
			code.NewBar(inv.AccessKey, props.Barcode{Top: 43, Percent: 100, Proportion: props.Proportion{Width: 20, Height: 2}, Type: barcode.Code128}),
		),
	)
}

// accessKeyRow texto legible de la clave bajo el código de barras.
func accessKeyRow(inv *entity.Invoice) core.Row {
	return row.New(5).Add(
		col.New(6),
		col.New(6).Add(text.New(inv.AccessKey, props.Text{Size: 6.5, Align: align.Center, Color: colorGray})),
	)
}

func buyerRow(inv *entity.Invoice) core.Row {
	return row.New(16).Add(
		col.New(8).Add(
			text.New("Razón Social / Nombres y Apellidos: "+clean(inv.Buyer.Name), props.Text{Size: 8, Top: 2}),
			text.New("Dirección: "+nonEmpty(clean(inv.Buyer.Address), "-"), props.Text{Size: 8, Top: 8, Color: colorGray}),
		),
		col.New(4).Add(
			text.New("Identificación: "+inv.Buyer.TaxID, props.Text{Size: 8, Align: align.Right, Top: 2}),
			text.New("Fecha Emisión: "+inv.IssueDate, props.Text{Size: 8, Align: align.Right, Top: 8}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 7, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cód.", 2, align.Left),
		h("Cant.", 1, align.Center),
		h("Descripción", 4, align.Left),
		h("P. Unitario", 2, align.Right),
		h("Descuento", 1, align.Right),
		h("Total", 2, align.Right),
	)
}

func detailRows(lines []entity.InvoiceLine) []core.Row {
	out := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		out = append(out, row.New(6).Add(
			col.New(2).Add(text.New(clean(l.Code), props.Text{Size: 7, Top: 1, Left: 1})),
			col.New(1).Add(text.New(l.Quantity.StringFixed(2), props.Text{Size: 7, Align: align.Center, Top: 1})),
			col.New(4).Add(text.New(clean(l.Description), props.Text{Size: 7, Top: 1, Left: 1})),
			col.New(2).Add(text.New(l.UnitPrice.StringFixed(2), props.Text{Size: 7, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(l.Discount.StringFixed(2), props.Text{Size: 7, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(l.Subtotal.StringFixed(2), props.Text{Size: 7, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return out
}

// footerRow: información adicional (izq) y totales (der).
func footerRow(inv *entity.Invoice) core.Row {
	info := []core.Component{
		text.New("Información Adicional", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
	}
	top := 7.0
	for _, f := range inv.AdditionalInfo {
		info = append(info, text.New(clean(f.Name)+": "+clean(f.Value), props.Text{Size: 7, Top: top, Color: colorGray}))
		top += 5
	}

	labels := []string{"SUBTOTAL SIN IMPUESTOS"}
	values := []string{inv.Subtotal.StringFixed(2)}
	for _, t := range inv.TaxTotals {
		labels = append(labels, "BASE "+taxLabel(t))
		values = append(values, t.Base.StringFixed(2))
		labels = append(labels, taxLabel(t))
		values = append(values, t.Amount.StringFixed(2))
	}
	labels = append(labels, "TOTAL DESCUENTO", "PROPINA", "VALOR TOTAL")
	values = append(values, inv.TotalDiscount.StringFixed(2), inv.Tip.StringFixed(2), inv.Total.StringFixed(2))

	var lcol, vcol []core.Component
	for i := range labels {
		style := props.Text{Size: 7, Align: align.Right, Top: float64(1 + 5*i), Right: 2}
		if i == len(labels)-1 {
			style.Style = fontstyle.Bold
			style.Color = colorPrimary
		}
		lcol = append(lcol, text.New(labels[i], style))
		style.Right = 1
		vcol = append(vcol, text.New(values[i], style))
	}

	height := float64(5*len(labels) + 4)
	if h := top + 4; h > height {
		height = h
	}
	return row.New(height).Add(
		col.New(6).Add(info...),
		col.New(4).Add(lcol...),
		col.New(2).Add(vcol...),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func taxLabel(t entity.TaxTotal) string {
	if t.Code == sri.ImpuestoIVA {
		return "IVA (código " + t.RateCode + ")"
	}
	return "IMPUESTO " + t.Code + "/" + t.RateCode
}

// clean normaliza a NFC; la fuente helvetica no compone acentos combinantes.
func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
