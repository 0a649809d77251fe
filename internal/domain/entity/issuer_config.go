package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssuerConfig perfil del emisor por ambiente: datos tributarios, token de Loyverse,
// certificado de firma y automatización.
type IssuerConfig struct {
	ID                   string
	Environment          string // "1" pruebas, "2" producción
	RUC                  string
	LegalName            string // razonSocial
	TradeName            string // nombreComercial
	MatrixAddress        string
	EstablishmentAddress string // vacío = MatrixAddress
	Establishment        string
	EmissionPoint        string
	Email                string
	Phone                string
	IVARate              decimal.Decimal // porcentaje, ej. 15
	SpecialTaxpayer      string
	AccountingRequired   bool
	LoyverseToken        string
	CertificateB64       string // PKCS#12 en base64
	CertificatePassword  string
	AutoSync             bool
	SyncIntervalMinutes  int
	LastSyncAt           *time.Time // marca de la última sincronización exitosa
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasCertificate indica si hay un PKCS#12 cargado.
func (c *IssuerConfig) HasCertificate() bool {
	return c.CertificateB64 != ""
}

// AccountingFlag devuelve "SI" o "NO" para obligadoContabilidad.
func (c *IssuerConfig) AccountingFlag() string {
	if c.AccountingRequired {
		return "SI"
	}
	return "NO"
}

// EstablishmentAddressOrMatrix dirección del establecimiento con respaldo en la matriz.
func (c *IssuerConfig) EstablishmentAddressOrMatrix() string {
	if c.EstablishmentAddress != "" {
		return c.EstablishmentAddress
	}
	return c.MatrixAddress
}
