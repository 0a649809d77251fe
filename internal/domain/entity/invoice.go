package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de la factura frente al SRI.
const (
	InvoiceStatusPending    = "PENDING"    // mapeada desde el recibo, sin firmar
	InvoiceStatusSigned     = "SIGNED"     // XML regenerado y firmado
	InvoiceStatusSent       = "SENT"       // recibida por el WS de recepción
	InvoiceStatusAuthorized = "AUTHORIZED" // autorizada, XML persistido
	InvoiceStatusRejected   = "REJECTED"   // devuelta o no autorizada
	InvoiceStatusError      = "ERROR"      // falla de certificado, firma o transporte
)

// IsFinal indica si el estado cierra el ciclo (AUTHORIZED o REJECTED).
func IsFinal(status string) bool {
	return status == InvoiceStatusAuthorized || status == InvoiceStatusRejected
}

// Invoice representa una factura electrónica (codDoc 01) del SRI.
type Invoice struct {
	ID         string
	LoyverseID string // id del recibo origen; vacío si se creó manualmente

	// infoTributaria
	Environment   string // "1" pruebas, "2" producción
	EmissionType  string
	IssuerName    string // razonSocial
	TradeName     string // nombreComercial
	IssuerRUC     string
	DocType       string
	Establishment string
	EmissionPoint string
	Sequential    string
	MatrixAddress string // dirMatriz

	// infoFactura
	IssueDate            string // dd/mm/yyyy
	EstablishmentAddress string
	SpecialTaxpayer      string // contribuyenteEspecial (número de resolución o vacío)
	AccountingRequired   string // obligadoContabilidad SI/NO
	BuyerIDType          string
	Buyer                Buyer

	Lines          []InvoiceLine
	Subtotal       decimal.Decimal // totalSinImpuestos
	TotalDiscount  decimal.Decimal
	TaxTotals      []TaxTotal
	Tip            decimal.Decimal // propina
	Total          decimal.Decimal // importeTotal
	Currency       string
	AdditionalInfo []AdditionalField

	// Derivados y ciclo de vida
	AccessKey           string // 49 dígitos; se genera una sola vez
	UnsignedXML         string // solo se persiste si AUTHORIZED
	SignedXML           string // solo se persiste si AUTHORIZED
	SRIResponse         string // última respuesta cruda del SRI
	AuthorizationNumber string
	AuthorizationDate   *time.Time
	Status              string
	History             []StatusEntry
	LastError           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Buyer datos del comprador. TaxID y Name son obligatorios.
type Buyer struct {
	TaxID   string `json:"tax_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// AdditionalField par nombre/valor de infoAdicional.
type AdditionalField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StatusEntry entrada del historial de estados.
type StatusEntry struct {
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
	Message string    `json:"message,omitempty"`
}

// AppendHistory agrega una entrada al historial y actualiza el estado actual.
func (inv *Invoice) AppendHistory(status string, at time.Time, message string) {
	inv.Status = status
	inv.History = append(inv.History, StatusEntry{Status: status, At: at, Message: message})
	inv.UpdatedAt = at
}

// Number devuelve el número visible 001-001-000000123.
func (inv *Invoice) Number() string {
	return inv.Establishment + "-" + inv.EmissionPoint + "-" + inv.Sequential
}
