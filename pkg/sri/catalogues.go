// Package sri contiene catálogos y algoritmos de la Ficha Técnica de
// Comprobantes Electrónicos del SRI (Ecuador), esquema offline.
package sri

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Tabla 4 - Tipo de ambiente
// =============================================================================

const (
	AmbientePruebas    = "1"
	AmbienteProduccion = "2"
)

// AmbienteFromName traduce el nombre de configuración ("pruebas" / "produccion")
// al código del SRI. Acepta también el código directamente.
func AmbienteFromName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "produccion", "producción", "production", "prod", AmbienteProduccion:
		return AmbienteProduccion
	default:
		return AmbientePruebas
	}
}

// AmbienteName devuelve el nombre legible del código de ambiente.
func AmbienteName(code string) string {
	if code == AmbienteProduccion {
		return "produccion"
	}
	return "pruebas"
}

// =============================================================================
// Tabla 2 - Tipo de emisión / Tabla 3 - Tipo de comprobante
// =============================================================================

const (
	TipoEmisionNormal = "1"

	CodDocFactura          = "01"
	CodDocLiquidacion      = "03"
	CodDocNotaCredito      = "04"
	CodDocNotaDebito       = "05"
	CodDocGuiaRemision     = "06"
	CodDocRetencion        = "07"
	EstablecimientoDefault = "001"
	PuntoEmisionDefault    = "001"
	SecuencialDefault      = "000000001"
)

// =============================================================================
// Tabla 6 - Tipo de identificación del comprador
// =============================================================================

const (
	IdentificacionRUC             = "04"
	IdentificacionCedula          = "05"
	IdentificacionPasaporte       = "06"
	IdentificacionConsumidorFinal = "07"
	IdentificacionExterior        = "08"

	// RUCConsumidorFinal es la identificación genérica de consumidor final.
	RUCConsumidorFinal = "9999999999999"
)

// BuyerIDType deduce el tipo de identificación a partir del número.
func BuyerIDType(taxID string) string {
	digits := OnlyDigits(taxID)
	switch {
	case digits == RUCConsumidorFinal:
		return IdentificacionConsumidorFinal
	case len(digits) == 13 && len(digits) == len(strings.TrimSpace(taxID)):
		return IdentificacionRUC
	case len(digits) == 10 && len(digits) == len(strings.TrimSpace(taxID)):
		return IdentificacionCedula
	default:
		return IdentificacionPasaporte
	}
}

// =============================================================================
// Tabla 16 / 17 - Impuestos y tarifas de IVA
// =============================================================================

const (
	ImpuestoIVA = "2"
	ImpuestoICE = "3"

	Moneda = "DOLAR"
)

// ivaRateCodes relaciona el porcentaje de IVA con su codigoPorcentaje.
var ivaRateCodes = map[string]string{
	"0":  "0",
	"12": "2",
	"14": "3",
	"15": "4",
	"5":  "5",
	"13": "10",
}

// IVARateCode devuelve el codigoPorcentaje para una tarifa de IVA.
// Tarifas no catalogadas caen en "2" (tarifa general histórica).
func IVARateCode(rate decimal.Decimal) string {
	if code, ok := ivaRateCodes[rate.Round(0).String()]; ok && rate.Equal(rate.Round(0)) {
		return code
	}
	return "2"
}

// =============================================================================
// Estados devueltos por los web services
// =============================================================================

const (
	EstadoRecibida        = "RECIBIDA"
	EstadoDevuelta        = "DEVUELTA"
	EstadoAutorizado      = "AUTORIZADO"
	EstadoNoAutorizado    = "NO AUTORIZADO"
	EstadoRechazada       = "RECHAZADA"
	EstadoEnProcesamiento = "EN PROCESAMIENTO"
)

// OnlyDigits elimina todo carácter que no sea dígito ASCII.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
