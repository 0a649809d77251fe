package sri

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/pkg/sri"
)

// MaxIssueAge antigüedad máxima aceptada para la fecha de emisión.
const MaxIssueAge = 90 * 24 * time.Hour

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator aplica las invariantes estructurales y numéricas de la factura y
// de la configuración del emisor. Los errores se acumulan con go-multierror.
type Validator struct {
	clock clockwork.Clock
}

// NewValidator crea el validador. clock nil usa el reloj real.
func NewValidator(clock clockwork.Clock) *Validator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Validator{clock: clock}
}

// ValidateInvoice devuelve nil o un error que envuelve domain.ErrInvalidInput y un
// *multierror.Error con cada problema encontrado.
func (v *Validator) ValidateInvoice(inv *entity.Invoice) error {
	if inv == nil {
		return fmt.Errorf("%w: factura nula", domain.ErrInvalidInput)
	}
	var errs *multierror.Error

	// ── Campos obligatorios ──
	switch inv.Environment {
	case "":
		errs = multierror.Append(errs, fmt.Errorf("el ambiente es obligatorio"))
	case sri.AmbientePruebas, sri.AmbienteProduccion:
	default:
		errs = multierror.Append(errs, fmt.Errorf("el ambiente debe ser 1 (pruebas) o 2 (producción)"))
	}
	required := []struct{ value, msg string }{
		{inv.EmissionType, "el tipo de emisión es obligatorio"},
		{inv.IssuerName, "la razón social es obligatoria"},
		{inv.TradeName, "el nombre comercial es obligatorio"},
		{inv.DocType, "el código de documento es obligatorio"},
		{inv.Establishment, "el establecimiento es obligatorio"},
		{inv.EmissionPoint, "el punto de emisión es obligatorio"},
		{inv.Sequential, "el secuencial es obligatorio"},
		{inv.MatrixAddress, "la dirección matriz es obligatoria"},
		{inv.EstablishmentAddress, "la dirección del establecimiento es obligatoria"},
		{inv.AccountingRequired, "obligado a contabilidad es obligatorio"},
		{inv.BuyerIDType, "el tipo de identificación del comprador es obligatorio"},
		{inv.Currency, "la moneda es obligatoria"},
		{inv.Buyer.TaxID, "la identificación del comprador es obligatoria"},
		{inv.Buyer.Name, "la razón social del comprador es obligatoria"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = multierror.Append(errs, errors.New(r.msg))
		}
	}
	if inv.IssuerRUC == "" {
		errs = multierror.Append(errs, fmt.Errorf("el RUC es obligatorio"))
	} else if err := ValidateRUC(inv.IssuerRUC); err != nil {
		errs = multierror.Append(errs, err)
	}
	if inv.Buyer.Email != "" && !emailRe.MatchString(inv.Buyer.Email) {
		errs = multierror.Append(errs, fmt.Errorf("el email del comprador no es válido: %q", inv.Buyer.Email))
	}
	if err := v.validateIssueDate(inv.IssueDate); err != nil {
		errs = multierror.Append(errs, err)
	}

	// ── Detalles ──
	if len(inv.Lines) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("la factura debe tener al menos un detalle"))
	}
	subtotal := decimal.Zero
	discount := decimal.Zero
	for i, l := range inv.Lines {
		n := i + 1
		if strings.TrimSpace(l.Description) == "" {
			errs = multierror.Append(errs, fmt.Errorf("detalle %d: descripción obligatoria", n))
		}
		if !l.Quantity.IsPositive() {
			errs = multierror.Append(errs, fmt.Errorf("detalle %d: cantidad inválida", n))
		}
		if l.UnitPrice.IsNegative() {
			errs = multierror.Append(errs, fmt.Errorf("detalle %d: precio unitario inválido", n))
		}
		if l.Discount.IsNegative() {
			errs = multierror.Append(errs, fmt.Errorf("detalle %d: descuento inválido", n))
		}
		if expected := LineSubtotal(l.Quantity, l.UnitPrice, l.Discount); !WithinTolerance(l.Subtotal, expected) {
			errs = multierror.Append(errs, fmt.Errorf("detalle %d: subtotal %s, esperado %s", n, l.Subtotal.StringFixed(2), expected.StringFixed(2)))
		}
		if len(l.Taxes) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("detalle %d: debe tener al menos un impuesto", n))
		}
		for j, t := range l.Taxes {
			if t.Code == "" || t.RateCode == "" {
				errs = multierror.Append(errs, fmt.Errorf("detalle %d impuesto %d: código y código de porcentaje obligatorios", n, j+1))
			}
			if t.Rate.IsNegative() {
				errs = multierror.Append(errs, fmt.Errorf("detalle %d impuesto %d: tarifa inválida", n, j+1))
			}
			if expected := TaxAmount(t.Base, t.Rate); !WithinTolerance(t.Amount, expected) {
				errs = multierror.Append(errs, fmt.Errorf("detalle %d impuesto %d: valor %s, esperado %s", n, j+1, t.Amount.StringFixed(2), expected.StringFixed(2)))
			}
		}
		subtotal = subtotal.Add(l.Subtotal)
		discount = discount.Add(l.Discount)
	}

	// ── Totales ──
	if !WithinTolerance(inv.Subtotal, subtotal) {
		errs = multierror.Append(errs, fmt.Errorf("total sin impuestos %s, esperado %s", inv.Subtotal.StringFixed(2), subtotal.StringFixed(2)))
	}
	if !WithinTolerance(inv.TotalDiscount, discount) {
		errs = multierror.Append(errs, fmt.Errorf("total descuento %s, esperado %s", inv.TotalDiscount.StringFixed(2), discount.StringFixed(2)))
	}
	if len(inv.TaxTotals) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("la factura debe tener al menos un impuesto total"))
	}
	errs = multierror.Append(errs, compareTaxTotals(inv.TaxTotals, AggregateTaxes(inv.Lines))...)
	if expected := ExpectedTotal(inv.Subtotal, inv.TaxTotals, inv.Tip); !WithinTolerance(inv.Total, expected) {
		errs = multierror.Append(errs, fmt.Errorf("importe total %s, esperado %s", inv.Total.StringFixed(2), expected.StringFixed(2)))
	}

	if inv.AccessKey != "" {
		if err := sri.ValidateAccessKey(inv.AccessKey); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// ValidateConfig valida el perfil del emisor antes de guardarlo.
func (v *Validator) ValidateConfig(cfg *entity.IssuerConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuración nula", domain.ErrInvalidInput)
	}
	var errs *multierror.Error
	if cfg.LoyverseToken == "" {
		errs = multierror.Append(errs, fmt.Errorf("el token de Loyverse es obligatorio"))
	}
	if cfg.RUC == "" {
		errs = multierror.Append(errs, fmt.Errorf("el RUC es obligatorio"))
	} else if err := ValidateRUC(cfg.RUC); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.Environment != sri.AmbientePruebas && cfg.Environment != sri.AmbienteProduccion {
		errs = multierror.Append(errs, fmt.Errorf("el ambiente debe ser 1 (pruebas) o 2 (producción)"))
	}
	if cfg.LegalName == "" {
		errs = multierror.Append(errs, fmt.Errorf("la razón social es obligatoria"))
	}
	if cfg.TradeName == "" {
		errs = multierror.Append(errs, fmt.Errorf("el nombre comercial es obligatorio"))
	}
	if cfg.MatrixAddress == "" {
		errs = multierror.Append(errs, fmt.Errorf("la dirección es obligatoria"))
	}
	if cfg.Email == "" {
		errs = multierror.Append(errs, fmt.Errorf("el email es obligatorio"))
	} else if !emailRe.MatchString(cfg.Email) {
		errs = multierror.Append(errs, fmt.Errorf("el email no es válido"))
	}
	if cfg.IVARate.IsNegative() || cfg.IVARate.GreaterThan(hundred) {
		errs = multierror.Append(errs, fmt.Errorf("la tarifa de IVA debe estar entre 0 y 100"))
	}
	if len(sri.OnlyDigits(cfg.Establishment)) != 3 || len(sri.OnlyDigits(cfg.EmissionPoint)) != 3 {
		errs = multierror.Append(errs, fmt.Errorf("establecimiento y punto de emisión deben tener 3 dígitos"))
	}
	if cfg.HasCertificate() && cfg.CertificatePassword == "" {
		errs = multierror.Append(errs, fmt.Errorf("la clave del certificado es obligatoria si se ha cargado un certificado"))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// ValidateRUC exige 13 dígitos terminados en 001.
func ValidateRUC(ruc string) error {
	if len(ruc) != 13 || sri.OnlyDigits(ruc) != ruc {
		return fmt.Errorf("el RUC debe tener 13 dígitos: %q", ruc)
	}
	if !strings.HasSuffix(ruc, "001") {
		return fmt.Errorf("el RUC debe terminar en 001: %q", ruc)
	}
	return nil
}

func (v *Validator) validateIssueDate(raw string) error {
	if raw == "" {
		return fmt.Errorf("la fecha de emisión es obligatoria")
	}
	t, ok := ParseIssueDate(raw)
	if !ok {
		return fmt.Errorf("la fecha de emisión %q no tiene formato dd/mm/yyyy", raw)
	}
	now := v.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if day.After(today) {
		return fmt.Errorf("la fecha de emisión %s está en el futuro", raw)
	}
	if today.Sub(day) > MaxIssueAge {
		return fmt.Errorf("la fecha de emisión %s excede la antigüedad máxima permitida", raw)
	}
	return nil
}

func compareTaxTotals(got, expected []entity.TaxTotal) []error {
	type key struct{ code, rate string }
	byKey := make(map[key]entity.TaxTotal, len(got))
	for _, t := range got {
		byKey[key{t.Code, t.RateCode}] = t
	}
	var errs []error
	for _, e := range expected {
		g, ok := byKey[key{e.Code, e.RateCode}]
		if !ok {
			errs = append(errs, fmt.Errorf("falta el impuesto total %s/%s", e.Code, e.RateCode))
			continue
		}
		if !WithinTolerance(g.Base, e.Base) || !WithinTolerance(g.Amount, e.Amount) {
			errs = append(errs, fmt.Errorf("impuesto total %s/%s: base %s valor %s, esperado base %s valor %s",
				e.Code, e.RateCode, g.Base.StringFixed(2), g.Amount.StringFixed(2), e.Base.StringFixed(2), e.Amount.StringFixed(2)))
		}
		delete(byKey, key{e.Code, e.RateCode})
	}
	for k := range byKey {
		errs = append(errs, fmt.Errorf("impuesto total %s/%s sin detalles que lo respalden", k.code, k.rate))
	}
	return errs
}
