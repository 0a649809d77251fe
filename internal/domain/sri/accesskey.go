// Package sri contiene la lógica de dominio de la factura electrónica del SRI:
// clave de acceso, totales e invariantes de validación.
package sri

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
	"github.com/jhoicas/loyverse-sri/pkg/sri"
)

// Rango del código numérico aleatorio de 8 dígitos.
const (
	codigoNumericoMin = 10000000
	codigoNumericoMax = 99999999
)

// RandomSource fuente del código numérico. *rand.Rand la satisface.
type RandomSource interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// AccessKeyGenerator construye la clave de acceso de 49 dígitos.
// Nunca falla: ante datos incompletos usa valores por defecto y deja un warning.
type AccessKeyGenerator struct {
	clock clockwork.Clock
	rnd   RandomSource
	log   *logger.Logger
}

// NewAccessKeyGenerator crea el generador. clock y rnd nil usan el reloj real y math/rand.
func NewAccessKeyGenerator(clock clockwork.Clock, rnd RandomSource, log *logger.Logger) *AccessKeyGenerator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rnd == nil {
		rnd = globalRand{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AccessKeyGenerator{clock: clock, rnd: rnd, log: log.Component("access_key")}
}

// Generate devuelve la clave para la factura:
// fecha(8) + codDoc(2) + RUC(13) + ambiente(1) + estab(3) + ptoEmi(3) + secuencial(9) +
// código numérico(8) + tipoEmisión(1) + dígito verificador(1).
func (g *AccessKeyGenerator) Generate(inv *entity.Invoice) string {
	var b strings.Builder
	b.Grow(sri.AccessKeyLength)

	b.WriteString(g.date(inv.IssueDate))
	b.WriteString(fixed(sri.OnlyDigits(inv.DocType), 2, sri.CodDocFactura))
	b.WriteString(g.ruc(inv.IssuerRUC))
	b.WriteString(environment(inv.Environment))
	b.WriteString(fixed(sri.OnlyDigits(inv.Establishment), 3, sri.EstablecimientoDefault))
	b.WriteString(fixed(sri.OnlyDigits(inv.EmissionPoint), 3, sri.PuntoEmisionDefault))
	b.WriteString(Sequential(inv.Sequential))
	b.WriteString(strconv.Itoa(codigoNumericoMin + g.rnd.Intn(codigoNumericoMax-codigoNumericoMin+1)))
	b.WriteString(fixed(sri.OnlyDigits(inv.EmissionType), 1, sri.TipoEmisionNormal))

	base := b.String()
	if len(base) != sri.AccessKeyBaseLength {
		g.log.Warn().Int("longitud", len(base)).Msg("base de clave de acceso con longitud inesperada, se ajusta a 48")
		if len(base) < sri.AccessKeyBaseLength {
			base += strings.Repeat("0", sri.AccessKeyBaseLength-len(base))
		} else {
			base = base[:sri.AccessKeyBaseLength]
		}
	}
	return base + strconv.Itoa(sri.CheckDigit(base))
}

// date convierte dd/mm/yyyy o yyyy-mm-dd a ddmmyyyy; si no se puede, usa la fecha actual.
func (g *AccessKeyGenerator) date(raw string) string {
	raw = strings.TrimSpace(raw)
	if t, ok := ParseIssueDate(raw); ok {
		return t.Format("02012006")
	}
	g.log.Warn().Str("fecha", raw).Msg("fecha de emisión ausente o inválida, se usa la fecha actual")
	return g.clock.Now().Format("02012006")
}

func (g *AccessKeyGenerator) ruc(raw string) string {
	digits := sri.OnlyDigits(raw)
	switch {
	case len(digits) == 13:
		return digits
	case len(digits) > 13:
		g.log.Warn().Int("digitos", len(digits)).Msg("RUC con más de 13 dígitos, se trunca")
		return digits[:13]
	default:
		g.log.Warn().Int("digitos", len(digits)).Msg("RUC incompleto, se completa con ceros")
		return strings.Repeat("0", 13-len(digits)) + digits
	}
}

func environment(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == sri.AmbientePruebas || raw == sri.AmbienteProduccion {
		return raw
	}
	if raw == "" {
		return sri.AmbientePruebas
	}
	return sri.AmbienteFromName(raw)
}

// Sequential normaliza el secuencial a 9 dígitos con ceros a la izquierda.
// Sin dígitos devuelve 000000001.
func Sequential(raw string) string {
	digits := sri.OnlyDigits(raw)
	if digits == "" {
		return sri.SecuencialDefault
	}
	if len(digits) > 9 {
		return digits[len(digits)-9:]
	}
	return strings.Repeat("0", 9-len(digits)) + digits
}

// fixed exige exactamente n dígitos; cualquier otra cosa devuelve def.
func fixed(digits string, n int, def string) string {
	if len(digits) == n {
		return digits
	}
	if digits != "" && len(digits) < n {
		return strings.Repeat("0", n-len(digits)) + digits
	}
	return def
}

// ParseIssueDate acepta dd/mm/yyyy, yyyy-mm-dd o un timestamp RFC 3339.
func ParseIssueDate(raw string) (time.Time, bool) {
	for _, layout := range []string{"02/01/2006", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
