// Package sri implementa el XML de la factura electrónica (esquema offline v1.1.0)
// y el cliente SOAP de los web services de recepción y autorización del SRI.
package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	domainsri "github.com/jhoicas/loyverse-sri/internal/domain/sri"
	"github.com/jhoicas/loyverse-sri/pkg/sri"
)

// Atributos fijos del elemento raíz.
const (
	ComprobanteID      = "comprobante"
	FacturaVersion     = "1.1.0"
	FacturaElementName = "factura"
)

// XMLBuilderService construye el XML de la factura (sin firma).
type XMLBuilderService struct {
	keys *domainsri.AccessKeyGenerator
}

// NewXMLBuilderService crea el servicio. keys se usa solo si la factura aún no tiene clave.
func NewXMLBuilderService(keys *domainsri.AccessKeyGenerator) *XMLBuilderService {
	return &XMLBuilderService{keys: keys}
}

// Build genera el documento <factura id="comprobante" version="1.1.0"> con los bloques
// infoTributaria, infoFactura, detalles e infoAdicional en el orden del esquema.
// Si la factura no tiene clave de acceso, la genera y la guarda en inv.AccessKey.
func (s *XMLBuilderService) Build(inv *entity.Invoice) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("sri: factura nula")
	}
	if len(inv.Lines) == 0 {
		return nil, fmt.Errorf("sri: la factura no tiene detalles")
	}
	if inv.AccessKey == "" {
		if s.keys == nil {
			return nil, fmt.Errorf("sri: factura sin clave de acceso y sin generador")
		}
		inv.AccessKey = s.keys.Generate(inv)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	w := &tokenWriter{enc: enc}
	w.start(FacturaElementName,
		xml.Attr{Name: xml.Name{Local: "id"}, Value: ComprobanteID},
		xml.Attr{Name: xml.Name{Local: "version"}, Value: FacturaVersion},
	)
	s.writeInfoTributaria(w, inv)
	s.writeInfoFactura(w, inv)
	s.writeDetalles(w, inv)
	s.writeInfoAdicional(w, inv)
	w.end(FacturaElementName)

	if w.err != nil {
		return nil, fmt.Errorf("sri: construir xml: %w", w.err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("sri: construir xml: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *XMLBuilderService) writeInfoTributaria(w *tokenWriter, inv *entity.Invoice) {
	w.start("infoTributaria")
	w.text("ambiente", orDefault(inv.Environment, sri.AmbientePruebas))
	w.text("tipoEmision", orDefault(inv.EmissionType, sri.TipoEmisionNormal))
	w.text("razonSocial", inv.IssuerName)
	if inv.TradeName != "" {
		w.text("nombreComercial", inv.TradeName)
	}
	w.text("ruc", inv.IssuerRUC)
	w.text("claveAcceso", inv.AccessKey)
	w.text("codDoc", orDefault(inv.DocType, sri.CodDocFactura))
	w.text("estab", orDefault(inv.Establishment, sri.EstablecimientoDefault))
	w.text("ptoEmi", orDefault(inv.EmissionPoint, sri.PuntoEmisionDefault))
	w.text("secuencial", domainsri.Sequential(inv.Sequential))
	w.text("dirMatriz", inv.MatrixAddress)
	w.end("infoTributaria")
}

func (s *XMLBuilderService) writeInfoFactura(w *tokenWriter, inv *entity.Invoice) {
	w.start("infoFactura")
	w.text("fechaEmision", issueDate(inv.IssueDate))
	if inv.EstablishmentAddress != "" {
		w.text("dirEstablecimiento", inv.EstablishmentAddress)
	}
	if inv.SpecialTaxpayer != "" {
		w.text("contribuyenteEspecial", inv.SpecialTaxpayer)
	}
	if inv.AccountingRequired != "" {
		w.text("obligadoContabilidad", inv.AccountingRequired)
	}
	w.text("tipoIdentificacionComprador", orDefault(inv.BuyerIDType, sri.BuyerIDType(inv.Buyer.TaxID)))
	w.text("razonSocialComprador", inv.Buyer.Name)
	w.text("identificacionComprador", inv.Buyer.TaxID)
	if inv.Buyer.Address != "" {
		w.text("direccionComprador", inv.Buyer.Address)
	}
	w.text("totalSinImpuestos", money(inv.Subtotal))
	w.text("totalDescuento", money(inv.TotalDiscount))

	w.start("totalConImpuestos")
	for _, t := range inv.TaxTotals {
		w.start("totalImpuesto")
		w.text("codigo", t.Code)
		w.text("codigoPorcentaje", t.RateCode)
		w.text("baseImponible", money(t.Base))
		w.text("valor", money(t.Amount))
		w.end("totalImpuesto")
	}
	w.end("totalConImpuestos")

	w.text("propina", money(inv.Tip))
	w.text("importeTotal", money(inv.Total))
	w.text("moneda", orDefault(inv.Currency, sri.Moneda))
	w.end("infoFactura")
}

func (s *XMLBuilderService) writeDetalles(w *tokenWriter, inv *entity.Invoice) {
	w.start("detalles")
	for _, l := range inv.Lines {
		w.start("detalle")
		w.text("codigoPrincipal", l.Code)
		w.text("descripcion", l.Description)
		w.text("cantidad", money(l.Quantity))
		w.text("precioUnitario", money(l.UnitPrice))
		w.text("descuento", money(l.Discount))
		w.text("precioTotalSinImpuesto", money(l.Subtotal))
		w.start("impuestos")
		for _, t := range l.Taxes {
			w.start("impuesto")
			w.text("codigo", t.Code)
			w.text("codigoPorcentaje", t.RateCode)
			w.text("tarifa", money(t.Rate))
			w.text("baseImponible", money(t.Base))
			w.text("valor", money(t.Amount))
			w.end("impuesto")
		}
		w.end("impuestos")
		w.end("detalle")
	}
	w.end("detalles")
}

func (s *XMLBuilderService) writeInfoAdicional(w *tokenWriter, inv *entity.Invoice) {
	if len(inv.AdditionalInfo) == 0 {
		return
	}
	w.start("infoAdicional")
	for _, f := range inv.AdditionalInfo {
		w.start("campoAdicional", xml.Attr{Name: xml.Name{Local: "nombre"}, Value: Sanitize(f.Name)})
		w.chars(f.Value)
		w.end("campoAdicional")
	}
	w.end("infoAdicional")
}

// ── tokenWriter ──

// tokenWriter escribe tokens y retiene el primer error.
type tokenWriter struct {
	enc *xml.Encoder
	err error
}

func (w *tokenWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(t)
}

func (w *tokenWriter) start(local string, attrs ...xml.Attr) {
	w.token(xml.StartElement{Name: xml.Name{Local: local}, Attr: attrs})
}

func (w *tokenWriter) end(local string) {
	w.token(xml.EndElement{Name: xml.Name{Local: local}})
}

func (w *tokenWriter) chars(value string) {
	w.token(xml.CharData(Sanitize(value)))
}

func (w *tokenWriter) text(local, value string) {
	w.start(local)
	w.chars(value)
	w.end(local)
}

// ── formato ──

// Sanitize normaliza a NFC, elimina caracteres de control y recorta espacios.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// money formatea con exactamente dos decimales.
func money(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func issueDate(raw string) string {
	if t, ok := domainsri.ParseIssueDate(strings.TrimSpace(raw)); ok {
		return t.Format("02/01/2006")
	}
	return raw
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
